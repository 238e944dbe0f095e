package calculator

import (
	"math"
	"testing"

	"github.com/markcheno/go-talib"
)

// wave produces a deterministic, non-monotonic price path.
func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 5*math.Sin(float64(i)/7) + 2*math.Cos(float64(i)/3) + float64(i)*0.05
	}
	return out
}

func TestEMA_SeedAndRecurrence(t *testing.T) {
	got := EMA([]float64{2, 4, 6, 8, 10}, 3)
	for i := 0; i < 2; i++ {
		if got[i].Valid {
			t.Fatalf("index %d should be undefined", i)
		}
	}
	if !got[2].Valid || got[2].V != 4 {
		t.Fatalf("seed: expected 4, got %+v", got[2])
	}
	// k = 0.5
	if got[3].V != 6 || got[4].V != 8 {
		t.Errorf("recurrence: got %v, %v", got[3].V, got[4].V)
	}
}

func TestEMASeries_LeadingUndefined(t *testing.T) {
	in := Series{{}, {}, {V: 1, Valid: true}, {V: 3, Valid: true}, {V: 5, Valid: true}}
	got := EMASeries(in, 2)
	if got[2].Valid {
		t.Fatal("one defined sample cannot seed span 2")
	}
	if !got[3].Valid || got[3].V != 2 {
		t.Fatalf("expected seed 2 at index 3, got %+v", got[3])
	}
}

func TestIndicators_ShortInputIsUndefined(t *testing.T) {
	short := wave(10)
	checks := map[string]Series{
		"ema":  EMA(short, 20),
		"rsi":  RSI(short, 14),
		"atr":  ATR(short, short, short, 14),
		"rsi0": RSI(nil, 14),
	}
	line, sig := MACD(short, 12, 26, 9)
	checks["macd"] = line
	checks["macd_signal"] = sig

	for name, s := range checks {
		for i, v := range s {
			if v.Valid {
				t.Errorf("%s[%d] defined on insufficient input: %v", name, i, v.V)
			}
		}
	}
}

func TestRSI_Bounds(t *testing.T) {
	series := [][]float64{
		wave(300),
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17},
		{17, 16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1},
	}
	for n, closes := range series {
		for i, v := range RSI(closes, 14) {
			if i < 14 && v.Valid {
				t.Fatalf("case %d: index %d should be undefined", n, i)
			}
			if v.Valid && (v.V < 0 || v.V > 100) {
				t.Fatalf("case %d: rsi[%d]=%v out of range", n, i, v.V)
			}
		}
	}
}

func TestRSI_ZeroLossSaturates(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	if got := RSI(closes, 14).Last(); !got.Valid || got.V != 100 {
		t.Errorf("expected 100, got %+v", got)
	}
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 5
	}
	if got := RSI(flat, 14).Last(); got.V != 100 {
		t.Errorf("flat series should saturate at 100, got %v", got.V)
	}
}

func TestMatchesTalib(t *testing.T) {
	closes := wave(400)

	ema := EMA(closes, 20)
	ref := talib.Ema(closes, 20)
	for i := len(closes) - 50; i < len(closes); i++ {
		if math.Abs(ema[i].V-ref[i]) > 1e-6 {
			t.Fatalf("ema[%d]: got %v, talib %v", i, ema[i].V, ref[i])
		}
	}

	rsi := RSI(closes, 14).Last()
	rsiRef := talib.Rsi(closes, 14)
	if math.Abs(rsi.V-rsiRef[len(rsiRef)-1]) > 1e-6 {
		t.Fatalf("rsi: got %v, talib %v", rsi.V, rsiRef[len(rsiRef)-1])
	}
}

func TestMACD_Alignment(t *testing.T) {
	closes := wave(120)
	line, sig := MACD(closes, 12, 26, 9)
	if line[24].Valid || !line[25].Valid {
		t.Fatalf("macd line should start at index 25")
	}
	if sig[32].Valid || !sig[33].Valid {
		t.Fatalf("signal line should start at index 33")
	}
	fast, slow := EMA(closes, 12), EMA(closes, 26)
	if d := line[60].V - (fast[60].V - slow[60].V); math.Abs(d) > 1e-12 {
		t.Errorf("macd line mismatch: %v", d)
	}
}

func TestATR(t *testing.T) {
	highs := []float64{11, 12, 13, 12, 14}
	lows := []float64{9, 10, 11, 10, 12}
	closes := []float64{10, 11, 12, 11, 13}
	got := ATR(highs, lows, closes, 2)

	if got[1].Valid {
		t.Fatal("index 1 should be undefined for period 2")
	}
	// TR: [2, 2, 2, 2, 3] -> seed mean(2,2)=2, then (2*1+2)/2=2, (2*1+3)/2=2.5
	if !got[2].Valid || got[2].V != 2 {
		t.Fatalf("seed: got %+v", got[2])
	}
	if got[4].V != 2.5 {
		t.Errorf("expected 2.5, got %v", got[4].V)
	}

	gap := TrueRange([]float64{10, 20}, []float64{9, 19}, []float64{9.5, 19.5})
	if gap[1] != 10.5 {
		t.Errorf("true range should use the previous close gap, got %v", gap[1])
	}

	if s := ATR(highs[:3], lows, closes, 2); s.Last().Valid {
		t.Error("mismatched lengths should be undefined")
	}
}
