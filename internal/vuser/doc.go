// Package vuser composes virtual users out of independent capabilities.
//
// A [User] holds one resolved profile, one step engine, a debug flag, a
// logger and optional test data, and delegates to them. A [Type] supplies
// the domain behavior on top through its New function.
//
// [New] runs these initializers exactly once each, in this order:
//
//	identity  assign a ULID and a logger named after the type
//	profile   resolve Options.Host and require every host in Type.Hosts
//	steps     build the step engine with the pacing, events, tracer and logger
//	testdata  take Options.TestData, else one record from Env.TestData
//	behavior  call Type.New with the assembled user
//
// A failure in any initializer aborts construction; later ones do not run.
//
// Pacing comes from the scenario entry for the type, else Type.Pacing, else
// zero think-time. The debug flag is set only by the caller, normally the
// tryscript package; users built for a load run have it false.
package vuser
