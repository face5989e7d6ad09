package permission

// MaxPermissions is the number of distinct permissions a Mask can hold.
const MaxPermissions = 64

// Mask is a set of permission bits.
type Mask uint64

// Has reports whether bit is set.
func (m Mask) Has(bit int) bool {
	if bit < 0 || bit >= MaxPermissions {
		return false
	}
	return m&(1<<bit) != 0
}

// With returns m with bit set. Out-of-range bits are ignored.
func (m Mask) With(bit int) Mask {
	if bit < 0 || bit >= MaxPermissions {
		return m
	}
	return m | 1<<bit
}

// Without returns m with bit cleared.
func (m Mask) Without(bit int) Mask {
	if bit < 0 || bit >= MaxPermissions {
		return m
	}
	return m &^ (1 << bit)
}
