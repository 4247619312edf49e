// Command app-image-gen writes a firmware image of a given size, for
// timing firmware updates against a device.
package main

import (
	"bufio"
	"flag"
	"log"
	"math/rand"
	"os"

	"github.com/docker/go-units"
)

func main() {
	size := flag.String("size", "1MiB", "Image size, such as 512KiB or 4MiB")
	seed := flag.Int64("seed", 1, "Seed for the image content")
	out := flag.String("o", "image.bin", "Output file")
	flag.Parse()

	n, err := units.RAMInBytes(*size)
	if err != nil {
		log.Fatalf("Invalid size %q: %v", *size, err)
	}
	if n <= 0 {
		log.Fatalf("Size must be positive, got %d", n)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal(err)
	}
	w := bufio.NewWriter(f)
	rnd := rand.New(rand.NewSource(*seed))
	buf := make([]byte, 32*1024)
	for remaining := n; remaining > 0; {
		chunk := buf
		if remaining < int64(len(chunk)) {
			chunk = chunk[:remaining]
		}
		rnd.Read(chunk)
		if _, err := w.Write(chunk); err != nil {
			log.Fatal(err)
		}
		remaining -= int64(len(chunk))
	}
	if err := w.Flush(); err != nil {
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s (%s)", *out, units.BytesSize(float64(n)))
}
