// Package compute launches, watches and terminates the instances of an app.
//
// An app runs at most one batch of instances at a time. Create resolves the
// newest image for the requested OS, launches the whole batch with a single
// RunInstances call and polls until every instance is running or the
// deadline passes. Membership is derived from the app tag on every call;
// nothing is stored locally.
package compute
