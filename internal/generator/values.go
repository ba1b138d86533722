package generator

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// valueGen is one compiled column generator. Only the fields its kind needs
// are set.
type valueGen struct {
	kind      Kind
	length    int
	precision int
	scale     int
	min, max  int64
	chance    float64
	fixed     interface{}
	values    []interface{}
	enum      []string
	start     time.Time
	end       time.Time
	sem       semantic
	unique    bool
}

// maxDigits bounds the integer part of generated decimals.
const maxDigits = 6

func (v valueGen) generate(f *faker, now time.Time, seq int64) interface{} {
	r := f.rand

	switch v.kind {
	case KindNull:
		return nil
	case KindSequence:
		return seq
	case KindInt, KindTinyInt, KindSmallInt, KindMediumInt, KindBigInt, KindYear:
		lo, hi := v.min, v.max
		if hi == 0 {
			lo, hi = intBounds(v.kind, false)
		}
		return lo + r.Int63n(hi-lo+1)
	case KindDecimal:
		return v.decimal(f)
	case KindFloat:
		return math.Round(r.Float64()*10000*100) / 100
	case KindBool:
		return r.Intn(2) == 1
	case KindText:
		var s string
		switch v.sem {
		case semEmail, semUsername:
			s = f.fit(f.text(v.sem), v.length, false)
		default:
			s = f.fit(f.text(v.sem), v.length, v.unique)
		}
		return s
	case KindChar:
		n := v.length
		if n <= 0 {
			n = 1
		}
		return f.letters(n)
	case KindUUID:
		id, err := uuid.NewRandomFromReader(r)
		if err != nil {
			return uuid.New().String()
		}
		return id.String()
	case KindDate:
		return f.date(now)
	case KindTimestamp:
		return f.timestamp(now)
	case KindTime:
		return f.clock()
	case KindJSON:
		return fmt.Sprintf(`{"generated": true, "seq": %d}`, seq)
	case KindBytes:
		b := make([]byte, 16)
		r.Read(b)
		return b
	case KindInet:
		return f.ip()
	case KindEnum:
		return v.enum[r.Intn(len(v.enum))]

	case KindFixed:
		return v.fixed
	case KindOneOf:
		return v.values[r.Intn(len(v.values))]
	case KindNumberRange:
		return v.min + r.Int63n(v.max-v.min+1)
	case KindWords:
		return f.fit(f.words(int(v.min), int(v.max)), v.length, false)
	case KindSentence:
		return f.fit(f.sentence(int(v.min), int(v.max)), v.length, false)
	case KindBoolean:
		return r.Float64() < v.chance
	case KindDatetimeRange:
		span := v.end.Sub(v.start)
		return v.start.Add(time.Duration(r.Int63n(int64(span)))).Truncate(time.Second)
	case KindAlphanumeric:
		return f.alphanumeric(v.length)
	}
	return nil
}

// decimal honours the column's precision and scale.
func (v valueGen) decimal(f *faker) decimal.Decimal {
	p, s := v.precision, v.scale
	if p <= 0 {
		p, s = 10, 2
	}
	if s > p {
		s = p
	}
	intDigits := p - s
	if intDigits > maxDigits {
		intDigits = maxDigits
	}
	if s > 12 {
		s = 12
	}
	bound := int64(math.Pow10(intDigits + s))
	return decimal.New(f.rand.Int63n(bound), -int32(s))
}
