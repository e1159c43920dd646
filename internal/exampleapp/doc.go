// Package exampleapp is a sample application modelled as two virtual user
// types, showing how a project builds on the vuser and step packages.
//
// Both types log in on start and run their tasks as named steps against the
// hosts of the resolved profile:
//
//	my-app-server     login page and uploads
//	my-sso-server     form login
//	test-data-server  optional account source, skipped in debug mode
//
// Register adds the types to a registry and DefaultScenario mixes them three
// to one.
package exampleapp
