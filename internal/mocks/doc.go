// Package mocks provides function-field test doubles for the domain
// interfaces, plus generic values shared by the service tests.
//
// Each mock has a BaselineXxx constructor whose functions succeed with the
// generic values; tests override only the function they exercise.
package mocks
