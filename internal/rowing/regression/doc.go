// Package regression provides the outlier-robust estimators used by the
// flywheel model.
//
// TSQuadratic fits y = A·x² + B·x + C where A is the median of the parabola
// coefficients of every point triple in the window and B, C come from a
// median-slope line through the residuals y − A·x². TSLinear is the pairwise
// (Theil–Sen) line, OLSLinear an ordinary least squares line and MovingMedian
// a small stream filter.
//
// All estimators work in window-local coordinates (x relative to the oldest
// retained point) so that long sessions with large cumulative times do not
// lose precision. Coefficients returned to callers are in the caller's
// coordinates.
//
// Bounded estimators preallocate their buffers; Push does not allocate.
package regression
