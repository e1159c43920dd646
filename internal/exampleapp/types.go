package exampleapp

import (
	"context"
	"time"

	"github.com/torosent/crankstep/internal/pacing"
	"github.com/torosent/crankstep/internal/scenario"
	"github.com/torosent/crankstep/internal/vuser"
)

// User type names.
const (
	Type1Name = "ExampleAppType1User"
	Type2Name = "ExampleAppType2User"
)

// Upload samples used by the tasks.
const (
	SamplePDF        = "sample-pdf.pdf"
	SampleSmallImage = "sample-pic-1mb.jpeg"
	SampleLargeImage = "sample-pic-10mb.jpeg"
)

// Type1User is the first example user type.
type Type1User struct {
	*App
}

// Tasks implements vuser.Behavior.
func (t *Type1User) Tasks() []vuser.Task {
	return []vuser.Task{
		{Name: "test_case_1", Run: t.TestCase1},
		{Name: "test_case_2", Run: t.TestCase2},
	}
}

// TestCase1 uploads a document.
func (t *Type1User) TestCase1(ctx context.Context) error {
	return t.run(ctx,
		namedStep{"TC1_01 Go to my folder", t.goToMyFolder},
		namedStep{"TC1_02 Upload a PDF", t.uploadFile(SamplePDF)},
		namedStep{"TC1_03 Close View", t.closeView},
	)
}

// TestCase2 uploads two images and browses their thumbnails.
func (t *Type1User) TestCase2(ctx context.Context) error {
	return t.run(ctx,
		namedStep{"TC2_01 Go to my folder", t.goToMyFolder},
		namedStep{"TC2_02 Upload small image", t.uploadFile(SampleSmallImage)},
		namedStep{"TC2_03 Upload large image", t.uploadFile(SampleLargeImage)},
		namedStep{"TC2_04 View Thumbnails", t.viewThumbs},
		namedStep{"TC2_05 Close View", t.closeView},
	)
}

func (t *Type1User) viewThumbs(context.Context) error {
	t.user.Log().Info("viewing thumbnails")
	return nil
}

func newType1(u *vuser.User) (vuser.Behavior, error) {
	app, err := NewApp(u)
	if err != nil {
		return nil, err
	}
	return &Type1User{App: app}, nil
}

// Type1 declares the first example user type.
func Type1() vuser.Type {
	return vuser.Type{
		Name:   Type1Name,
		Hosts:  []string{HostApp, HostSSO},
		Pacing: pacing.Between(2*time.Second, 5*time.Second),
		New:    newType1,
	}
}

// Type2 is a copy of Type1 under its own name, so the two can be weighted
// and paced separately.
func Type2() vuser.Type {
	typ := Type1()
	typ.Name = Type2Name
	return typ
}

// Register adds both example types to reg.
func Register(reg *vuser.Registry) error {
	return reg.Register(Type1(), Type2())
}

// DefaultScenario runs three Type1 users for every Type2 user, with Type2
// thinking longer between steps.
func DefaultScenario() *scenario.Scenario {
	s, err := scenario.New(
		scenario.Entry{Type: Type1Name, Weight: 3, Pacing: pacing.Between(2*time.Second, 5*time.Second)},
		scenario.Entry{Type: Type2Name, Weight: 1, Pacing: pacing.Between(3*time.Second, 8*time.Second)},
	)
	if err != nil {
		panic(err)
	}
	return s
}
