package service

// ProtocolGateService checks the payload protocol version against the
// configured acceptable window before any business parsing happens.
type ProtocolGateService struct {
	min int
	max int
}

func NewProtocolGateService(min, max int) *ProtocolGateService {
	return &ProtocolGateService{min: min, max: max}
}

// CheckVersion validates a payload version. version == nil means the field
// was absent, which is tolerated only while the configured minimum is 1.
func (g *ProtocolGateService) CheckVersion(version *int) error {
	if version == nil {
		if g.min > 1 {
			return ErrVersionMissing
		}
		return nil
	}
	if *version < g.min {
		return ErrVersionTooOld
	}
	if *version > g.max {
		return ErrVersionTooNew
	}
	return nil
}

// Window returns the accepted [min, max] range for error context.
func (g *ProtocolGateService) Window() (int, int) {
	return g.min, g.max
}
