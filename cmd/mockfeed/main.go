// Command mockfeed serves a synthetic event feed and reverse-geocoding
// endpoint, so the ingest service can run end-to-end without touching
// the real upstreams.
//
// Usage:
//
//	go run ./cmd/mockfeed -addr :9090 -count 5
//
// then point the service at it:
//
//	FEED_URL=http://localhost:9090/fdsnws/event/1/query \
//	GEOCODE_URL=http://localhost:9090/reverse \
//	GEOCODE_DELAY=0s go run ./cmd/ingest
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

type properties struct {
	Unid        string  `json:"unid"`
	Time        string  `json:"time"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Depth       float64 `json:"depth"`
	Mag         float64 `json:"mag"`
	FlynnRegion string  `json:"flynn_region"`
}

type feature struct {
	ID         string     `json:"id"`
	Properties properties `json:"properties"`
}

type featureCollection struct {
	Features []feature `json:"features"`
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	count := flag.Int("count", 5, "events per feed response")
	seed := flag.Int64("seed", 1, "random seed, fixed for reproducible runs")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /fdsnws/event/1/query", func(w http.ResponseWriter, r *http.Request) {
		fc := syntheticFeed(rng, r, *count)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(fc); err != nil {
			log.Printf("encode feed response: %v", err)
		}
		log.Printf("feed: served %d events for %s .. %s",
			len(fc.Features), r.URL.Query().Get("starttime"), r.URL.Query().Get("endtime"))
	})
	mux.HandleFunc("GET /reverse", func(w http.ResponseWriter, r *http.Request) {
		lat := r.URL.Query().Get("lat")
		lon := r.URL.Query().Get("lon")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"display_name": "Mock Town near (%s, %s)"}`+"\n", lat, lon)
		log.Printf("reverse: (%s, %s)", lat, lon)
	})

	log.Printf("mockfeed listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

// syntheticFeed fabricates events spread across the requested window and
// bounding box. Identifiers are derived from coordinates so overlapping
// windows replay the same events, which exercises deduplication.
func syntheticFeed(rng *rand.Rand, r *http.Request, count int) featureCollection {
	q := r.URL.Query()
	minLat := queryFloat(q.Get("minlat"), 35.0)
	maxLat := queryFloat(q.Get("maxlat"), 43.0)
	minLon := queryFloat(q.Get("minlon"), 25.0)
	maxLon := queryFloat(q.Get("maxlon"), 45.0)
	minMag := queryFloat(q.Get("minmag"), 2.0)

	end := time.Now().UTC()
	if t, err := time.Parse("2006-01-02T15:04:05", q.Get("endtime")); err == nil {
		end = t
	}

	fc := featureCollection{Features: make([]feature, 0, count)}
	for i := 0; i < count; i++ {
		lat := minLat + rng.Float64()*(maxLat-minLat)
		lon := minLon + rng.Float64()*(maxLon-minLon)
		mag := minMag + rng.Float64()*4
		occurred := end.Add(-time.Duration(rng.Intn(3600)) * time.Second)

		id := fmt.Sprintf("mock_%06.0f_%06.0f", lat*1000, lon*1000)
		fc.Features = append(fc.Features, feature{
			ID: id,
			Properties: properties{
				Unid:        id,
				Time:        occurred.Format("2006-01-02T15:04:05.0Z"),
				Lat:         round4(lat),
				Lon:         round4(lon),
				Depth:       round4(5 + rng.Float64()*20),
				Mag:         round4(mag),
				FlynnRegion: "MOCK REGION",
			},
		})
	}
	return fc
}

func queryFloat(s string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return fallback
}

func round4(v float64) float64 {
	return float64(int(v*10000)) / 10000
}
