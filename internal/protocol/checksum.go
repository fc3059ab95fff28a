package protocol

// Checksum returns the additive checksum of data: the byte sum modulo 256
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}
