package telemetry

// Batcher exposes the span's output batcher for tests.
func (s *OTelSpan) Batcher() *OutputBatcher {
	return s.batcher
}
