package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgSim = `{
  "adapter": {
      "clock_khz": 100,
      "delay_us": 10
  },
  "diag": {
      "interval": 2
  }
}`

const cfgPico = `{
  "adapter": {
      "clock_khz": 400,
      "delay_us": 0
  },
  "diag": {
      "interval": 5
  }
}`

var embeddedConfigs = map[string][]byte{
	"sim":  []byte(cfgSim),
	"pico": []byte(cfgPico),
}
