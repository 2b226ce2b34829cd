// Package site is the generator that build configurations target. An Engine
// collects plugin and passthrough registrations (it implements
// buildconfig.Framework) and turns an input tree into an output tree through
// a fixed sequence of stages:
//
//	prepare_output -> resolve_plugins -> discover -> render -> passthrough -> write -> link_check
//
// Each stage either succeeds, records a warning and lets the build continue,
// or fails the build. The result of every run is a BuildReport.
package site
