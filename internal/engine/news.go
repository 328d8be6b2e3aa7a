package engine

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/talgya/damage-control/internal/config"
	"github.com/talgya/damage-control/internal/entropy"
	"github.com/talgya/damage-control/internal/world"
)

// announce picks one of texts and queues it. An empty pick means silence.
func (w *World) announce(a *Action, texts []config.NewsText, category string) {
	if len(texts) == 0 {
		return
	}
	weights := make([]float64, len(texts))
	for i, t := range texts {
		weights[i] = t.Weight
	}
	idx, ok := entropy.WeightedChoice(w.rng, entropy.Pairs(indices(len(texts)), weights))
	if !ok || texts[idx].Text == "" {
		return
	}
	w.emit(category, w.expandNews(texts[idx].Text, a))
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// expandNews fills in the placeholders of an announcement:
//
//	%t  the drawn duration ("3 days")
//	%r  the day range ("4 to 7 days")
//	%p  the person's name, %P capitalised
//	%a  the area name
//	%c  the connection ("Alice and Bob")
//	%%  a literal percent sign
func (w *World) expandNews(text string, a *Action) string {
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] != '%' || i+1 == len(text) {
			b.WriteByte(text[i])
			continue
		}
		i++
		switch text[i] {
		case 't':
			b.WriteString(days(int(math.Round(a.Days))))
		case 'r':
			lo, hi := int(math.Round(a.Def.Time.Min)), int(math.Round(a.Def.Time.Max))
			if lo == hi {
				b.WriteString(days(lo))
			} else {
				fmt.Fprintf(&b, "%d to %d days", lo, hi)
			}
		case 'p', 'a', 'c':
			b.WriteString(a.Where)
		case 'P':
			b.WriteString(capitalize(a.Where))
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(text[i])
		}
	}
	return b.String()
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func (w *World) connectionName(c *Connection) string {
	return w.people[c.People[0]].Name + " and " + w.people[c.People[1]].Name
}

// areaName names the place around p after the nearest named area.
func (w *World) areaName(p world.Point) string {
	if i := world.NearestArea(w.areas, p); i >= 0 {
		return w.areas[i].Name
	}
	return "the area"
}
