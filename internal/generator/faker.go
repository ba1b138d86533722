package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// semantic is the flavour of text picked from a column's name.
type semantic int

const (
	semWord semantic = iota
	semEmail
	semName
	semUsername
	semTitle
	semSentence
	semURL
	semPhone
	semAddress
	semCode
)

func semanticFor(colName string) semantic {
	colLower := strings.ToLower(colName)

	switch {
	case strings.Contains(colLower, "email"):
		return semEmail
	case strings.Contains(colLower, "username") || strings.Contains(colLower, "login") || strings.Contains(colLower, "handle"):
		return semUsername
	case strings.Contains(colLower, "name") && !strings.Contains(colLower, "file") && !strings.Contains(colLower, "user"):
		return semName
	case strings.Contains(colLower, "title"):
		return semTitle
	case strings.Contains(colLower, "description") || strings.Contains(colLower, "content") ||
		strings.Contains(colLower, "body") || strings.Contains(colLower, "comment") || strings.Contains(colLower, "bio"):
		return semSentence
	case strings.Contains(colLower, "url") || strings.Contains(colLower, "link"):
		return semURL
	case strings.Contains(colLower, "phone"):
		return semPhone
	case strings.Contains(colLower, "address"):
		return semAddress
	case strings.Contains(colLower, "code") || strings.Contains(colLower, "sku") || strings.Contains(colLower, "slug"):
		return semCode
	}
	return semWord
}

var (
	firstNames = []string{"John", "Jane", "Alice", "Bob", "Charlie", "Diana", "Eve", "Frank", "Grace", "Henry"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez"}
	domains    = []string{"example.com", "test.com", "demo.com", "mail.com"}
	titles     = []string{
		"Getting Started with Go",
		"Understanding Databases",
		"Web Development Best Practices",
		"Introduction to APIs",
		"Modern Software Architecture",
		"Cloud Computing Basics",
		"Data Structures and Algorithms",
		"Machine Learning Fundamentals",
	}
	sentences = []string{
		"This is a sample text generated for testing purposes.",
		"Lorem ipsum dolor sit amet, consectetur adipiscing elit.",
		"The quick brown fox jumps over the lazy dog.",
		"Software development requires careful planning and execution.",
		"Database design is crucial for application performance.",
	}
	words      = []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
	loremWords = []string{
		"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing", "elit",
		"sed", "do", "eiusmod", "tempor", "incididunt", "ut", "labore", "et", "dolore",
		"magna", "aliqua", "enim", "ad", "minim", "veniam", "quis", "nostrud",
		"exercitation", "ullamco", "laboris", "nisi", "aliquip", "ex", "ea", "commodo",
	}
)

const alnum = "abcdefghijklmnopqrstuvwxyz0123456789"

// faker produces the name-aware text values. It shares the table's RNG so a
// seeded run is reproducible.
type faker struct {
	rand    *rand.Rand
	counter int
}

func (f *faker) text(sem semantic) string {
	switch sem {
	case semEmail:
		return f.email()
	case semName:
		return f.name()
	case semUsername:
		return f.username()
	case semTitle:
		return titles[f.rand.Intn(len(titles))]
	case semSentence:
		return sentences[f.rand.Intn(len(sentences))]
	case semURL:
		return fmt.Sprintf("https://example.com/page/%d", f.rand.Intn(1000))
	case semPhone:
		return fmt.Sprintf("+1-%03d-%03d-%04d", f.rand.Intn(1000), f.rand.Intn(1000), f.rand.Intn(10000))
	case semAddress:
		return fmt.Sprintf("%d Main Street, City, State %05d", f.rand.Intn(9999)+1, f.rand.Intn(100000))
	case semCode:
		return strings.ToUpper(f.alphanumeric(8))
	}
	return words[f.rand.Intn(len(words))]
}

func (f *faker) name() string {
	return firstNames[f.rand.Intn(len(firstNames))] + " " + lastNames[f.rand.Intn(len(lastNames))]
}

func (f *faker) email() string {
	f.counter++
	return fmt.Sprintf("user%d_%d@%s", f.counter, f.rand.Intn(100000), domains[f.rand.Intn(len(domains))])
}

func (f *faker) username() string {
	f.counter++
	return fmt.Sprintf("%s%d", strings.ToLower(firstNames[f.rand.Intn(len(firstNames))]), f.counter)
}

func (f *faker) alphanumeric(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alnum[f.rand.Intn(len(alnum))]
	}
	return string(b)
}

func (f *faker) letters(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('A' + f.rand.Intn(26))
	}
	return string(b)
}

// words joins between min and max lorem words.
func (f *faker) words(min, max int) string {
	n := min
	if max > min {
		n += f.rand.Intn(max - min + 1)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = loremWords[f.rand.Intn(len(loremWords))]
	}
	return strings.Join(out, " ")
}

func (f *faker) sentence(min, max int) string {
	s := f.words(min, max)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

func (f *faker) timestamp(now time.Time) time.Time {
	secs := f.rand.Int63n(365 * 24 * 60 * 60)
	return now.Add(-time.Duration(secs) * time.Second).Truncate(time.Second)
}

func (f *faker) date(now time.Time) time.Time {
	days := f.rand.Intn(5 * 365)
	d := now.AddDate(0, 0, -days)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func (f *faker) clock() string {
	return fmt.Sprintf("%02d:%02d:%02d", f.rand.Intn(24), f.rand.Intn(60), f.rand.Intn(60))
}

func (f *faker) ip() string {
	return fmt.Sprintf("10.%d.%d.%d", f.rand.Intn(256), f.rand.Intn(256), f.rand.Intn(254)+1)
}

// fit trims s to a column's maximum length. When the column is unique the
// tail token is kept so truncation does not collapse distinct values.
func (f *faker) fit(s string, length int, unique bool) string {
	if unique {
		token := f.alphanumeric(6)
		switch {
		case length <= 0 || len(s)+7 <= length:
			return s + "-" + token
		case length > 7:
			return s[:length-7] + "-" + token
		default:
			return f.alphanumeric(length)
		}
	}
	if length > 0 && len(s) > length {
		return s[:length]
	}
	return s
}
