// Package preflight provides readiness checks for the render engine binary
// and the filesystem paths an export writes to.
//
// These checks run in two contexts:
//   - The export coordinator and the engine renderer call CheckDirectoryAccess
//     before any track is unmuted, so a doomed run never touches the project.
//   - The CLI "trackexport check" command runs RunAll to display readiness.
package preflight
