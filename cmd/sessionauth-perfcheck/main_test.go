package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baselineOutput = `goos: linux
goarch: amd64
pkg: github.com/maccas-one/sessionauth
BenchmarkValidateSession-8   	  500000	      2000 ns/op	     512 B/op	       6 allocs/op
BenchmarkValidateSession-8   	  500000	      2100 ns/op	     512 B/op	       6 allocs/op
BenchmarkValidateSession-8   	  500000	      1900 ns/op	     512 B/op	       6 allocs/op
BenchmarkOther-8             	  100000	     99999 ns/op
PASS
`

func TestParseKeepsTrackedBenchmarks(t *testing.T) {
	samples, err := parse(strings.NewReader(baselineOutput), trackedMetrics)
	require.NoError(t, err)

	assert.Equal(t, []float64{2000, 2100, 1900}, samples["BenchmarkValidateSession"]["ns/op"])
	assert.Equal(t, []float64{6, 6, 6}, samples["BenchmarkValidateSession"]["allocs/op"])
	assert.NotContains(t, samples, "BenchmarkOther")
}

func TestCompareFlagsRegression(t *testing.T) {
	tracked := map[string][]string{"BenchmarkValidateSession": {"ns/op", "allocs/op"}}
	baseline := sampleSet{"BenchmarkValidateSession": {"ns/op": {2000, 2100, 1900}, "allocs/op": {6}}}
	candidate := sampleSet{"BenchmarkValidateSession": {"ns/op": {3000, 3100, 2900}, "allocs/op": {6}}}

	rows, failures := compare(baseline, candidate, tracked, 0.30)

	require.Len(t, rows, 2)
	assert.InDelta(t, 0.5, rows[0].delta, 1e-9)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "ns/op regressed")
}

func TestCompareWithinThreshold(t *testing.T) {
	tracked := map[string][]string{"BenchmarkLogin": {"ns/op"}}
	baseline := sampleSet{"BenchmarkLogin": {"ns/op": {1000}}}
	candidate := sampleSet{"BenchmarkLogin": {"ns/op": {1200}}}

	_, failures := compare(baseline, candidate, tracked, 0.30)
	assert.Empty(t, failures)
}

func TestCompareMissingSamples(t *testing.T) {
	tracked := map[string][]string{"BenchmarkRateCheckRedis": {"ns/op"}}

	_, failures := compare(sampleSet{}, sampleSet{}, tracked, 0.30)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "missing samples")
}

func TestCompareZeroAllocBaseline(t *testing.T) {
	tracked := map[string][]string{"BenchmarkRateCheckRedis": {"allocs/op"}}
	zero := sampleSet{"BenchmarkRateCheckRedis": {"allocs/op": {0}}}
	some := sampleSet{"BenchmarkRateCheckRedis": {"allocs/op": {3}}}

	_, failures := compare(zero, zero, tracked, 0.30)
	assert.Empty(t, failures)

	_, failures = compare(zero, some, tracked, 0.30)
	require.Len(t, failures, 1)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "BenchmarkLogin", normalizeName("BenchmarkLogin-16"))
	assert.Equal(t, "BenchmarkLogin", normalizeName("BenchmarkLogin"))
	assert.Equal(t, "BenchmarkA-b", normalizeName("BenchmarkA-b"))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
	assert.Equal(t, 0.0, median(nil))
}
