// Profiling:
// go build ./cmd/meshdb-profile/entities
// go tool pprof -http=":8000" -nodefraction=0.001 ./entities mem.pprof

package main

import (
	"github.com/gomesh/meshdb"
	"github.com/pkg/profile"
)

func main() {
	rounds := 50
	iters := 10000
	numVertices := 1000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(rounds, iters, numVertices)
	p.Stop()
}

func run(rounds, iters, numVertices int) {
	for range rounds {
		db := meshdb.NewDatabase()
		for range iters {
			handles := make([]meshdb.Handle, 0, numVertices)
			for i := 0; i < numVertices; i++ {
				h, err := db.CreateVertex(float64(i), 0, 0)
				if err != nil {
					panic(err)
				}
				handles = append(handles, h)
			}
			if err := db.DeleteEntities(handles); err != nil {
				panic(err)
			}
		}
	}
}
