// Package device manages the relay's fleet of attached lights.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────┐
//	│                       device package                       │
//	│                                                            │
//	│  ┌──────────────────┐        ┌──────────────────────────┐  │
//	│  │    Registry      │◀───────│       Dispatcher         │  │
//	│  │  (registry.go)   │        │     (dispatcher.go)      │  │
//	│  │                  │        │                          │  │
//	│  │ • ordered Handles│        │ • ApplyColor             │  │
//	│  │ • exclusive scope│        │ • set_rgb then set_bright│  │
//	│  │ • Open / Close   │        │ • fail fast, no rollback │  │
//	│  └────────┬─────────┘        └──────────────────────────┘  │
//	│           │                                                │
//	└───────────│────────────────────────────────────────────────┘
//	            ▼
//	┌──────────────────────┐
//	│  yeelight.Bulb (TCP) │
//	└──────────────────────┘
//
// # Concurrency
//
// The Registry's membership is fixed once Open returns. All device writes go
// through WithExclusiveAccess, which admits one caller at a time, so two chat
// commands never interleave their per-device color and brightness writes.
//
// # Usage
//
//	reg, err := device.Open(ctx, cfg.Devices.Addresses, device.YeelightConnector(yeelight.Config{}))
//	if err != nil {
//	    return err // startup-fatal
//	}
//	defer reg.Close()
//
//	dispatcher := device.NewDispatcher(reg)
//	report, err := dispatcher.ApplyColor(ctx, 0xFF0000)
package device
