// Package request defines the documents an upstream orchestrator sends:
// connectivity actions, app deploys, deletes, power changes, saves and
// restores, together with the result returned for each.
//
// One set of json-tagged structs serves both surfaces. The HTTP API decodes
// JSON bodies and the CLI decodes YAML files, both through [Decode].
package request
