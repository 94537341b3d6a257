package media

// WithRunner replaces the command runner. Intended for tests that fake the
// collaborator tools.
func (m *MKVToolnix) WithRunner(run CommandRunner) *MKVToolnix {
	m.run = run
	return m
}

// WithRunner replaces the command runner. Intended for tests that fake the
// collaborator tools.
func (f *FFmpeg) WithRunner(run CommandRunner) *FFmpeg {
	f.run = run
	return f
}
