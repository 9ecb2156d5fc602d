package types

// ------------------------
// Adapter configuration
// ------------------------

// AdapterConfig is published retained on {"config","adapter"} by the config
// service and applied by the adapter service when it starts or changes.
type AdapterConfig struct {
	// ClockKHz is the two-wire clock rate requested at boot. Zero means
	// DefaultClockKHz. Unattainable rates are quantized by the driver.
	ClockKHz uint16 `json:"clock_khz"`
	// DelayUS mirrors CmdSetDelay: stored, reported, no effect on the bus.
	DelayUS uint16 `json:"delay_us"`
}
