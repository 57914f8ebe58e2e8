package market

// CallRecorder is the small metrics seam the provider connectors report
// call durations through, kept as an interface so market never has to
// import the metrics package's concrete Registry.
type CallRecorder interface {
	ObserveProviderCall(provider, outcome string, seconds float64)
}

// FlightRecorder is the small metrics seam the cache+single-flight call
// sites report coalesced calls through.
type FlightRecorder interface {
	RecordFlightCoalesced(mapName string)
}
