// Profiling:
// go build ./profile/build
// go tool pprof -http=":8000" -nodefraction=0.001 ./build mem.pprof

package main

import (
	"github.com/edwinsyarief/kumitate"
	"github.com/pkg/profile"
)

type comp1 struct {
	V int64
	W int64
}

type comp2 struct {
	V int64
	W int64
}

func main() {
	count := 50
	iters := 1000
	entities := 1000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(count, iters, entities)
	p.Stop()
}

func run(rounds, iters, numEntities int) {
	for range rounds {
		w := kumitate.NewWorld(numEntities)
		builder := kumitate.NewBuilder().SetTranslation(1, 2, 3)
		kumitate.With(builder, comp1{V: 1})
		kumitate.With(builder, comp2{V: 2})
		query := kumitate.NewFilter[comp1](w)

		for range iters {
			log := kumitate.NewCommandLog(w)
			for range numEntities {
				if _, err := builder.Build(log); err != nil {
					panic(err)
				}
			}
			if err := log.Playback(); err != nil {
				panic(err)
			}

			entities := []kumitate.Entity{}
			query.Reset()
			for query.Next() {
				entities = append(entities, query.Entity())
				c := query.Get()
				c.V += c.W
			}
			for _, e := range entities {
				w.RemoveEntity(e)
			}
		}
	}
}
