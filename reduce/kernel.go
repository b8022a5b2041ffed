package reduce

// BlockSize is the work-group width of the reduction kernel
const BlockSize = 256

// Arguments after the launch grid: n, inc, batch stride (elements), index of
// the segment's first batch element, 1 for max or 0 for min, data, results.
//
// Each work item scans positions t, t+NB, ... in order and keeps its first
// best; the shared-memory combine then prefers the better magnitude and, on
// equal magnitudes, the smaller position.
const reduceKernel = `
#define REDUCE_NB 256

#if IS_COMPLEX
#define MAGNITUDE(p, e) (REAL_ABS(p[e]) + REAL_ABS(p[(e) + 1]))
#else
#define MAGNITUDE(p, e) REAL_ABS(p[e])
#endif

#define BETTER(a, b) (findMax ? (a) > (b) : (a) < (b))

@kernel void iamax_batched(const int_t gridX, const int_t gridY, const int_t gridZ,
                           const int_t n, const int_t incx, const int_t stride,
                           const int_t first, const int_t findMax,
                           const real_t *x, int_t *result) {
	for (int_t b = 0; b < gridX; ++b; @outer(0)) {
		@shared real_t sval[REDUCE_NB];
		@shared int_t sidx[REDUCE_NB];

		for (int_t t = 0; t < REDUCE_NB; ++t; @inner(0)) {
			int_t best = -1;
			real_t bestVal = REAL_ZERO;
			for (int_t i = t; i < n; i += REDUCE_NB) {
				const int_t off = incx > 0 ? i*incx : (n - 1 - i)*(-incx);
				const real_t m = MAGNITUDE(x, (b*stride + off)*ELEM_WIDTH);
				if (REAL_ISNAN(m) && i != 0) continue;
				if (best < 0 || BETTER(m, bestVal)) {
					best = i;
					bestVal = m;
				}
			}
			sval[t] = bestVal;
			sidx[t] = best;
		}

		for (int_t s = REDUCE_NB/2; s > 0; s /= 2) {
			for (int_t t = 0; t < REDUCE_NB; ++t; @inner(0)) {
				if (t < s) {
					const int_t oi = sidx[t + s];
					const int_t mi = sidx[t];
					if (oi >= 0) {
						const real_t ov = sval[t + s];
						const real_t mv = sval[t];
						if (mi < 0 || BETTER(ov, mv) || (ov == mv && oi < mi)) {
							sval[t] = ov;
							sidx[t] = oi;
						}
					}
				}
			}
		}

		for (int_t t = 0; t < REDUCE_NB; ++t; @inner(0)) {
			if (t == 0) {
				result[first + b] = sidx[0];
			}
		}
	}
}
`
