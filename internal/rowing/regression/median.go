package regression

// median partially reorders buf in place and returns its median in
// expected linear time. For an even count the two middle values are
// averaged. An empty buffer yields 0.
func median(buf []float64) float64 {
	n := len(buf)
	if n == 0 {
		return 0
	}
	mid := n / 2
	upper := selectKth(buf, mid)
	if n%2 == 1 {
		return upper
	}
	// buf[:mid] now holds the values at or below the upper middle.
	lower := buf[0]
	for _, v := range buf[1:mid] {
		if v > lower {
			lower = v
		}
	}
	return (lower + upper) / 2
}

// selectKth moves the k-th smallest value of buf to buf[k], with smaller or
// equal values before it and larger or equal values after, and returns it.
func selectKth(buf []float64, k int) float64 {
	lo, hi := 0, len(buf)-1
	for lo < hi {
		pivot := medianOfThree(buf[lo], buf[lo+(hi-lo)/2], buf[hi])
		i, j := lo, hi
		for i <= j {
			for buf[i] < pivot {
				i++
			}
			for buf[j] > pivot {
				j--
			}
			if i <= j {
				buf[i], buf[j] = buf[j], buf[i]
				i++
				j--
			}
		}
		switch {
		case k <= j:
			hi = j
		case k >= i:
			lo = i
		default:
			return buf[k]
		}
	}
	return buf[k]
}

func medianOfThree(a, b, c float64) float64 {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		return a
	}
	return b
}

// goodness maps the residual and total sums of squares onto [0, 1].
// A perfect fit is 1; a fit worse than the mean line, or an undefined R²
// (no variance in y), is 0.
func goodness(sse, sst float64) float64 {
	switch {
	case sse == 0:
		return 1
	case sse > sst:
		return 0
	case sst != 0:
		return 1 - sse/sst
	default:
		return 0
	}
}

// growTo returns buf resliced to n, reallocating only when capacity is short.
func growTo(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n, n+n/2)
	}
	return buf[:n]
}
