// Profiling:
// go build ./cmd/meshdb-profile/ranges
// go tool pprof -http=":8000" -nodefraction=0.001 ./ranges cpu.prof

package main

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/gomesh/meshdb"
)

func main() {
	f, _ := os.Create("cpu.prof")
	_ = pprof.StartCPUProfile(f)
	defer pprof.StopCPUProfile()

	rounds := 50
	iters := 10000
	numVertices := 100000
	run(rounds, iters, numVertices)

	memFile, _ := os.Create("mem.prof")
	defer memFile.Close()
	runtime.GC()
	_ = pprof.WriteHeapProfile(memFile)
}

func run(rounds, iters, numVertices int) {
	for range rounds {
		db := meshdb.NewDatabase()
		first, err := db.CreateVertex(0, 0, 0)
		if err != nil {
			panic(err)
		}
		for i := 1; i < numVertices; i++ {
			if _, err := db.CreateVertex(float64(i), 0, 0); err != nil {
				panic(err)
			}
		}
		last := first + meshdb.Handle(numVertices-1)
		r := meshdb.NewRangeFromRun(first, last)

		for range iters {
			for h := range r.All() {
				_ = h
			}
		}
	}
}
