package exampleapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/torosent/crankstep/internal/feeder"
	"github.com/torosent/crankstep/internal/httpclient"
	"github.com/torosent/crankstep/internal/step"
	"github.com/torosent/crankstep/internal/vuser"
)

// Logical host names used by the example application.
const (
	HostApp      = "my-app-server"
	HostSSO      = "my-sso-server"
	HostTestData = "test-data-server"
)

// Profile settings read by the example application.
const (
	// SettingUploadDir names a directory holding the upload samples. Without
	// it uploads are only logged. {{field}} placeholders are filled from the
	// user's test data.
	SettingUploadDir = "upload_dir"
	// SettingRequestTimeout is a duration string such as "10s".
	SettingRequestTimeout = "request_timeout"
)

const (
	// DefaultRequestTimeout applies when the profile sets none.
	DefaultRequestTimeout = 30 * time.Second

	requestTokenAttr = "data-requesttoken"
)

// App holds what every example user type has in common: an HTTP session and
// the login flow.
type App struct {
	user         *vuser.User
	client       *http.Client
	requestToken string
}

// NewApp builds the shared part of an example user.
func NewApp(u *vuser.User) (*App, error) {
	timeout := DefaultRequestTimeout
	if raw, ok := u.Profile().Setting(SettingRequestTimeout); ok {
		s, isString := raw.(string)
		if !isString {
			return nil, fmt.Errorf("setting %s must be a duration string", SettingRequestTimeout)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", SettingRequestTimeout, err)
		}
		timeout = d
	}
	return &App{
		user:   u,
		client: httpclient.NewClient(httpclient.Options{Timeout: timeout, Propagate: true}),
	}, nil
}

// User returns the instance the app belongs to.
func (a *App) User() *vuser.User { return a.user }

// RequestToken returns the token read from the login page by the last login.
func (a *App) RequestToken() string { return a.requestToken }

// OnStart loads test data when none was given and logs in. A failed login is
// reported as a step failure and does not abort the start.
func (a *App) OnStart(ctx context.Context) error {
	if a.user.TestData() == nil && !a.user.Debug() {
		if _, ok := a.user.Profile().Host(HostTestData); ok {
			rec, err := a.fetchAccount(ctx)
			if err != nil {
				return fmt.Errorf("fetch test data: %w", err)
			}
			a.user.SetTestData(rec)
		}
	}

	out := a.user.Step(ctx, "TC0_01 Login", a.login)
	if out.Skipped {
		return out.Err
	}
	return nil
}

func (a *App) fetchAccount(ctx context.Context) (feeder.Record, error) {
	req, err := httpclient.NewRequest(ctx, http.MethodGet, a.user.Endpoint(HostTestData, "/bucket/accounts"), nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpclient.Drain(resp)
	if err := httpclient.CheckStatus(resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return accountRecord(body)
}

// accountRecord turns an account document, or the first element of an
// array of them, into a test-data record.
func accountRecord(body []byte) (feeder.Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("account response is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if doc.IsArray() {
		doc = doc.Get("0")
	}
	if !doc.IsObject() {
		return nil, errors.New("account response holds no account object")
	}
	rec := feeder.Record{}
	doc.ForEach(func(key, value gjson.Result) bool {
		rec[key.String()] = value.String()
		return true
	})
	return rec, nil
}

func (a *App) login(ctx context.Context) error {
	data := a.user.TestData()
	if err := step.Check(data.Get("username") != "", "test data has no username"); err != nil {
		return err
	}

	req, err := httpclient.NewRequest(ctx, http.MethodGet, a.user.Endpoint(HostApp, "/"), nil, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	if err := httpclient.CheckStatus(resp); err != nil {
		httpclient.Drain(resp)
		return err
	}
	doc, err := ParseHTML(resp.Body)
	httpclient.Drain(resp)
	if err != nil {
		return err
	}
	token, err := HeadAttr(doc, requestTokenAttr)
	if err != nil {
		return err
	}
	a.requestToken = token
	a.user.Log().Info("request token", zap.String("requesttoken", token))

	form := url.Values{
		"user":         {data.Get("username")},
		"password":     {data.Get("password")},
		"requesttoken": {token},
	}
	req, err = httpclient.NewRequest(ctx, http.MethodPost, a.user.Endpoint(HostSSO, "/login"), httpclient.Form(form), nil)
	if err != nil {
		return err
	}
	resp, err = a.client.Do(req)
	if err != nil {
		return err
	}
	defer httpclient.Drain(resp)
	a.logCookies(resp)
	return httpclient.CheckStatus(resp)
}

func (a *App) logCookies(resp *http.Response) {
	names := make([]string, 0, len(resp.Cookies()))
	for _, c := range resp.Cookies() {
		names = append(names, c.Name)
	}
	a.user.Log().Debug("response",
		zap.Int("status", resp.StatusCode),
		zap.Strings("cookies", names),
	)
}

func (a *App) goToMyFolder(context.Context) error {
	a.user.Log().Info("going to my folder")
	return nil
}

func (a *App) closeView(context.Context) error {
	a.user.Log().Info("closing the view")
	return nil
}

// uploadFile posts a sample file from the profile's upload directory.
func (a *App) uploadFile(filename string) func(context.Context) error {
	return func(ctx context.Context) error {
		a.user.Log().Info("uploading", zap.String("file", filename))
		raw, ok := a.user.Profile().Setting(SettingUploadDir)
		if !ok {
			return nil
		}
		dir, _ := raw.(string)
		if dir == "" {
			return nil
		}
		dir = feeder.SubstitutePlaceholders(dir, a.user.TestData())

		src, err := httpclient.File(filepath.Join(dir, filename))
		if err != nil {
			return err
		}
		body, err := httpclient.Multipart("file", filename, src)
		if err != nil {
			return err
		}
		header := http.Header{}
		if a.requestToken != "" {
			header.Set("requesttoken", a.requestToken)
		}
		req, err := httpclient.NewRequest(ctx, http.MethodPost, a.user.Endpoint(HostApp, "/upload"), body, header)
		if err != nil {
			return err
		}
		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		defer httpclient.Drain(resp)
		return httpclient.CheckStatus(resp)
	}
}

// namedStep pairs a step name with its body.
type namedStep struct {
	name string
	fn   func(context.Context) error
}

// run executes steps in order. Failed steps are already reported as events,
// so only cancellation stops the sequence.
func (a *App) run(ctx context.Context, steps ...namedStep) error {
	for _, s := range steps {
		if out := a.user.Step(ctx, s.name, s.fn); out.Skipped {
			return out.Err
		}
	}
	return nil
}
