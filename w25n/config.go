package w25n

// Unprotect clears the block protection bits, which are all set at power
// up, so that program and erase are accepted.
func (d *Device) Unprotect() error {
	return d.WriteStatusRegister(RegProtection, 0)
}

// SetBufferMode selects buffer read mode (true) or continuous read mode.
func (d *Device) SetBufferMode(buffer bool) error {
	return d.updateConfig(ConfigBUF, buffer)
}

// SetECC enables or disables on-chip ECC.
func (d *Device) SetECC(enable bool) error {
	return d.updateConfig(ConfigECCE, enable)
}

func (d *Device) updateConfig(bit byte, set bool) error {
	if err := d.waitReady(0); err != nil {
		return opError("read config", RegConfig, err)
	}
	v, err := d.ReadStatusRegister(RegConfig)
	if err != nil {
		return opError("read config", RegConfig, err)
	}
	nv := byte(v) &^ bit
	if set {
		nv |= bit
	}
	if nv == byte(v) {
		return nil
	}
	return d.WriteStatusRegister(RegConfig, nv)
}
