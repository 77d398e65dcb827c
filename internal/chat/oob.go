package chat

// Out-of-band message payloads are sequences of 16-bit code units stored as
// little-endian byte blobs.

func encodeOOB(units []uint16) []byte {
	if len(units) == 0 {
		return nil
	}
	out := make([]byte, len(units)*2)
	for i, unit := range units {
		out[i*2] = byte(unit)
		out[i*2+1] = byte(unit >> 8)
	}
	return out
}

// decodeOOB rejects odd-length blobs outright. A truncated payload means the
// stored row is damaged, not that the tail can be dropped.
func decodeOOB(data []byte) ([]uint16, error) {
	if len(data)%2 != 0 {
		return nil, &CorruptionError{Message: "persistent_message.oob blob has invalid UTF-16 byte length"}
	}
	if len(data) == 0 {
		return nil, nil
	}
	units := make([]uint16, len(data)/2)
	for i := range units {
		units[i] = uint16(data[i*2]) | uint16(data[i*2+1])<<8
	}
	return units, nil
}
