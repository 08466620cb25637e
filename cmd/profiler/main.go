package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"web/kmeanslab/kmeans"
)

var (
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile  = flag.String("memprofile", "", "write memory profile to file")
	heapprofile = flag.String("heapprofile", "", "write heap profile to file")
	numPoints   = flag.Int("points", 100000, "number of points to generate")
	numClusters = flag.Int("k", 8, "number of centroids")
	maxSteps    = flag.Int("maxsteps", 1000, "step cap per run")
	testall     = flag.Bool("testall", false, "test all configurations")
)

var testBounds = kmeans.Bounds{MinX: 0, MinY: 0, MaxX: 1000, MaxY: 1000}

// stepToConvergence advances the engine until it converges or hits the cap,
// returning the number of half-steps taken.
func stepToConvergence(e *kmeans.Engine, limit int) int {
	steps := 0
	for !e.Converged() && steps < limit {
		e.Step()
		steps++
	}
	return steps
}

func runSingleProfile(numPoints, k, maxSteps int) {
	fmt.Printf("Profiling with %d points, k=%d\n", numPoints, k)

	points := kmeans.GenerateBlobs(numPoints, k, testBounds, 42)
	engine, err := kmeans.New(points, kmeans.Options{K: k, Seed: 42})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not create engine: %v\n", err)
		return
	}

	var memStatsBefore, memStatsAfter runtime.MemStats
	runtime.ReadMemStats(&memStatsBefore)

	start := time.Now()
	steps := stepToConvergence(engine, maxSteps)
	duration := time.Since(start)

	runtime.ReadMemStats(&memStatsAfter)
	allocMB := float64(memStatsAfter.TotalAlloc-memStatsBefore.TotalAlloc) / 1024 / 1024

	status := "converged"
	if !engine.Converged() {
		status = "step cap reached"
	}
	fmt.Printf("Clustering %s after %d steps in %v\n", status, steps, duration)
	fmt.Printf("Memory allocated: %.2f MB\n", allocMB)
	fmt.Printf("Memory usage: %.2f MB\n", float64(memStatsAfter.Alloc)/1024/1024)
}

func runProfileBattery() {
	pointCounts := []int{1000, 10000, 50000, 100000}
	clusterCounts := []int{2, 5, 8, 16, 32}

	fmt.Println("Running comprehensive profile battery...")
	fmt.Println("=======================================")

	fmt.Printf("%-10s | %-10s | %-10s | %-15s | %-12s | %-10s\n",
		"Points", "K", "Steps", "Duration", "Memory (MB)", "GC Runs")
	fmt.Printf("%s\n", "------------------------------------------------------------------------")

	for _, points := range pointCounts {
		for _, k := range clusterCounts {
			testPoints := kmeans.GenerateBlobs(points, k, testBounds, 42)
			engine, err := kmeans.New(testPoints, kmeans.Options{K: k, Seed: 42})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Could not create engine: %v\n", err)
				continue
			}

			var memStatsBefore, memStatsAfter runtime.MemStats
			runtime.ReadMemStats(&memStatsBefore)

			start := time.Now()
			steps := stepToConvergence(engine, *maxSteps)
			duration := time.Since(start)

			runtime.ReadMemStats(&memStatsAfter)
			memMB := float64(memStatsAfter.TotalAlloc-memStatsBefore.TotalAlloc) / 1024 / 1024
			gcRuns := memStatsAfter.NumGC - memStatsBefore.NumGC

			fmt.Printf("%-10d | %-10d | %-10d | %-15s | %-12.2f | %-10d\n",
				points, k, steps, duration, memMB, gcRuns)
		}

		fmt.Printf("%s\n", "------------------------------------------------------------------------")
	}
}

func main() {
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			return
		}
		defer f.Close()

		fmt.Println("Starting CPU profiling...")
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			return
		}
		defer pprof.StopCPUProfile()
	}

	if *testall {
		runProfileBattery()
	} else {
		runSingleProfile(*numPoints, *numClusters, *maxSteps)
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create memory profile: %v\n", err)
			return
		}
		defer f.Close()
		runtime.GC() // Get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write memory profile: %v\n", err)
		}
	}

	if *heapprofile != "" {
		f, err := os.Create(*heapprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create heap profile: %v\n", err)
			return
		}
		defer f.Close()

		memProfile := pprof.Lookup("heap")
		if memProfile == nil {
			fmt.Fprintf(os.Stderr, "Could not find heap profile\n")
			return
		}

		if err := memProfile.WriteTo(f, 0); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write heap profile: %v\n", err)
		}
	}
}
