// Package vars expands {{...}} placeholders in request files.
//
// A placeholder is one of:
//   - {{name}}: a value captured from an earlier response, or a variable
//   - {{$NAME}}: an environment variable, falling back to loaded .env files
//   - {{fn(args)}}: a built-in function such as uuid(), timestamp() or
//     random(1, 100)
//
// Unresolved placeholders are left in place and reported through the
// resolver's warn function.
package vars
