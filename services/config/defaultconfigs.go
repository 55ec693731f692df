package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgNodesim = `{
  "telemetry": {
      "period_ms": 2000,
      "dark_threshold": 20
  },
  "link": {
      "baud": 9600
  }
}`

var embeddedConfigs = map[string][]byte{
	"nodesim": []byte(cfgNodesim),
}
