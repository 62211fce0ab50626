// Package confloader loads settings from a YAML file and the environment
// with koanf. Environment values win over file values.
//
// Environment variables map to dotted keys by dropping the prefix, lowering
// case and turning underscores into dots: TRUSTCORE_SESSION_SECRET becomes
// session.secret.
//
// # What this package must NOT do
//
//   - Validate values. The root Config does that.
//   - Watch files. Configuration is read once at startup.
package confloader
