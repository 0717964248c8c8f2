// Package project reads the facts devserve needs from a front-end project
// directory without modifying it:
//
//   - package.json (JSONC-tolerant) and its scripts
//   - the package manager, from the packageManager field or a lockfile
//   - the dev server port, when the dev script passes one explicitly
package project
