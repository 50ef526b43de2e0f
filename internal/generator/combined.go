package generator

import (
	"io"
	"math/rand/v2"
	"strconv"
	"time"
)

// Combined Log Format: {ip} - - [{time}] "{method} {path} HTTP/1.1" {status} {bytes} "-" "{agent}"
const timeLayout = "02/Jan/2006:15:04:05 +0000"

var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/98.0.4758.102 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Firefox/95.0",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.93 Safari/537.36",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 14_4_2) like Mac OS X AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148",
		"curl/7.68.0",
		"Wget/1.21.1",
	}

	methods = []string{"GET", "POST", "PUT", "DELETE", "HEAD"}

	paths = []string{
		"/",
		"/api/v1/users",
		"/api/v1/orders",
		"/login",
		"/logout",
		"/static/css/main.css",
		"/static/js/app.js",
		"/images/logo.png",
	}

	statusCodes = []int{200, 201, 301, 302, 400, 401, 403, 404, 500, 502, 503}
)

const (
	linePoolSize = 10000 // Pre-generate this many unique lines
	maxAge       = 30 * 24 * time.Hour
	minBytes     = 200
	maxBytes     = 5000
)

// CombinedLogGenerator writes web-server access log lines with random
// clients, requests and timestamps from the 30 days before Now.
type CombinedLogGenerator struct {
	// Now anchors generated timestamps. Zero means time.Now at Init.
	Now time.Time

	rand     *rand.Rand
	linePool [][]byte
}

func (g *CombinedLogGenerator) Init(r *rand.Rand) {
	g.rand = r

	now := g.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	g.linePool = make([][]byte, linePoolSize)
	for i := range g.linePool {
		g.linePool[i] = g.line(now)
	}
}

func (g *CombinedLogGenerator) line(now time.Time) []byte {
	r := g.rand
	ts := now.Add(-time.Duration(r.Int64N(int64(maxAge))))

	b := make([]byte, 0, 256)
	b = strconv.AppendInt(b, int64(r.IntN(256)), 10)
	for range 3 {
		b = append(b, '.')
		b = strconv.AppendInt(b, int64(r.IntN(256)), 10)
	}
	b = append(b, " - - ["...)
	b = ts.AppendFormat(b, timeLayout)
	b = append(b, `] "`...)
	b = append(b, methods[r.IntN(len(methods))]...)
	b = append(b, ' ')
	b = append(b, paths[r.IntN(len(paths))]...)
	b = append(b, ` HTTP/1.1" `...)
	b = strconv.AppendInt(b, int64(statusCodes[r.IntN(len(statusCodes))]), 10)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(minBytes+r.IntN(maxBytes-minBytes+1)), 10)
	b = append(b, ` "-" "`...)
	b = append(b, userAgents[r.IntN(len(userAgents))]...)
	b = append(b, "\"\n"...)
	return b
}

func (g *CombinedLogGenerator) WriteLine(w io.Writer) error {
	// Pick a random pre-generated line and write it
	_, err := w.Write(g.linePool[g.rand.IntN(linePoolSize)])
	return err
}

func (g *CombinedLogGenerator) Description() string {
	return `Combined access log: {ip} - - [{time}] "{method} {path} HTTP/1.1" {status} {bytes} "-" "{agent}"`
}

// NoisyGenerator mixes malformed lines into another generator's output.
type NoisyGenerator struct {
	Inner Generator
	// Ratio is the fraction of lines, in [0,1], that are malformed.
	Ratio float64

	rand *rand.Rand
}

var noise = [][]byte{
	[]byte("\n"),
	[]byte("garbage without any quotes\n"),
	[]byte(`10.0.0.1 - - [x] "GET"` + "\n"),
	[]byte(`10.0.0.1 - - [x] "GET / HTTP/1.1" 200 many "-" "ua"` + "\n"),
}

func (g *NoisyGenerator) Init(r *rand.Rand) {
	g.rand = r
	g.Inner.Init(r)
}

func (g *NoisyGenerator) WriteLine(w io.Writer) error {
	if g.rand.Float64() < g.Ratio {
		_, err := w.Write(noise[g.rand.IntN(len(noise))])
		return err
	}
	return g.Inner.WriteLine(w)
}

func (g *NoisyGenerator) Description() string {
	return g.Inner.Description() + " with malformed lines mixed in"
}
