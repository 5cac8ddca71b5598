// Package device provides the Device Registry and the device families the
// gateway exposes as Alexa endpoints.
//
// Every registered device is an Adapter: it knows its endpoint ID and
// friendly name, describes itself for discovery and produces a fresh state
// report on demand. What a device can be told to do is expressed through
// small capability interfaces (PowerController, RangeController, ...) that
// each family implements independently. The directive router type-asserts
// for the interface a directive needs via As.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                         Device Registry                          │
//	│                                                                  │
//	│  ┌─────────────────┐   ┌─────────────────┐   ┌────────────────┐  │
//	│  │    Registry     │   │     Catalog     │   │    Families    │  │
//	│  │  (registry.go)  │◀──│  (catalog.go)   │──▶│ (light.go ...) │  │
//	│  │                 │   │                 │   │                │  │
//	│  │ • lookup by id  │   │ • YAML entries  │   │ • capabilities │  │
//	│  │ • point index   │   │ • validation    │   │ • state report │  │
//	│  └─────────────────┘   └─────────────────┘   └────────────────┘  │
//	│                                                      │           │
//	└──────────────────────────────────────────────────────│───────────┘
//	                                                       ▼
//	                                          ┌──────────────────────┐
//	                                          │   pointstore.Store   │
//	                                          │ (MQTT state topics)  │
//	                                          └──────────────────────┘
//
// # Point naming
//
// Families address device state through named points in the point store,
// derived from the catalog entry's source ID plus a family-specific suffix,
// for example "hm-rpc.0.OEQ1234567.4.LEVEL" for a HomeMatic blind actuator.
// A catalog entry may override any point by role.
//
// # Thread Safety
//
// The Registry is populated once at startup and read concurrently afterwards.
// Adapters hold no mutable state; every call reads and writes through the
// point store.
package device
