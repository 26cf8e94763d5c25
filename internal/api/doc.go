// Package api serves the counter over HTTP: the four counter routes under
// /api/counter, health and environment info, and the single page at /.
package api
