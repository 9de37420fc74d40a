package dataset

// BinarizeMNIST maps even digits to +1 and odd digits to -1.
func BinarizeMNIST(class int) int {
	if class%2 == 0 {
		return 1
	}
	return -1
}

// BinarizeCIFAR maps vehicles (airplane, automobile, ship, truck) to +1 and
// animals to -1.
func BinarizeCIFAR(class int) int {
	switch class {
	case 0, 1, 8, 9:
		return 1
	default:
		return -1
	}
}
