package numerics

// Tile shape of the matrix scan and block width of the vector scan. These
// are compiled into the kernel sources below.
const (
	CheckDimX = 16
	CheckDimY = 16
	CheckNB   = 256
)

// classifyBody ORs the findings for the element starting at component e of
// A into flags. Only ones are ever stored, so concurrent writers agree.
const classifyBody = `
				const real_t re = A[e];
#if IS_COMPLEX
				const real_t im = A[e + 1];
#else
				const real_t im = REAL_ZERO;
#endif
				if (REAL_ISNAN(re) || REAL_ISNAN(im)) flags[0] = 1;
				if (REAL_ISINF(re) || REAL_ISINF(im)) flags[1] = 1;
				if (re == REAL_ZERO && im == REAL_ZERO) flags[2] = 1;
				if (REAL_ISDENORM(re) || REAL_ISDENORM(im)) flags[3] = 1;
`

// Arguments after the launch grid: stored rows, stored cols, lda, element
// offset, batch stride (elements), data, flags
const matrixKernel = `
#define CHECK_DIM_X 16
#define CHECK_DIM_Y 16

@kernel void check_numerics_matrix(const int_t gridX, const int_t gridY, const int_t gridZ,
                                   const int_t rows, const int_t cols, const int_t lda,
                                   const int_t offset, const int_t stride,
                                   const real_t *A, int_t *flags) {
	for (int_t bz = 0; bz < gridZ; ++bz; @outer(2)) {
		for (int_t by = 0; by < gridY; ++by; @outer(1)) {
			for (int_t bx = 0; bx < gridX; ++bx; @outer(0)) {
				for (int_t ty = 0; ty < CHECK_DIM_Y; ++ty; @inner(1)) {
					for (int_t tx = 0; tx < CHECK_DIM_X; ++tx; @inner(0)) {
						const int_t i = bx*CHECK_DIM_X + tx;
						const int_t j = by*CHECK_DIM_Y + ty;
						if (i < rows && j < cols) {
							const int_t e = (bz*stride + offset + j*lda + i)*ELEM_WIDTH;
` + classifyBody + `
						}
					}
				}
			}
		}
	}
}
`

// Arguments after the launch grid: n, |inc|, element offset, batch stride,
// data, flags. Traversal direction does not matter for classification.
const vectorKernel = `
#define CHECK_NB 256

@kernel void check_numerics_vector(const int_t gridX, const int_t gridY, const int_t gridZ,
                                   const int_t n, const int_t incx,
                                   const int_t offset, const int_t stride,
                                   const real_t *A, int_t *flags) {
	for (int_t bz = 0; bz < gridZ; ++bz; @outer(1)) {
		for (int_t bx = 0; bx < gridX; ++bx; @outer(0)) {
			for (int_t tx = 0; tx < CHECK_NB; ++tx; @inner(0)) {
				const int_t i = bx*CHECK_NB + tx;
				if (i < n) {
					const int_t e = (bz*stride + offset + i*incx)*ELEM_WIDTH;
` + classifyBody + `
				}
			}
		}
	}
}
`
