package main

import "testing"

func TestParseBinSchedule(t *testing.T) {
	sch, err := parseBinSchedule(`{"today":"Orange","tomorrow":"","days_to_next":0}`)
	if err != nil {
		t.Fatal(err)
	}
	if sch.Today != "green" || sch.Tomorrow != "none" {
		t.Fatalf("expected orange->green and empty->none, got %+v", sch)
	}

	for _, bad := range []string{
		`not json`,
		`{"today":"blue"}`,
		`{"today":"none","tomorrow":"none","days_to_next":-1}`,
	} {
		if _, err := parseBinSchedule(bad); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}
}

func TestBinsFromSchedule(t *testing.T) {
	cases := []struct {
		name    string
		sch     BinSchedule
		black   BinInfo
		green   BinInfo
		orange  BinInfo
		display string
	}{
		{
			name:    "black today",
			sch:     BinSchedule{Today: "black", Tomorrow: "none"},
			black:   BinInfo{Status: BinDueToday},
			display: "Black bin due today",
		},
		{
			name:    "green tomorrow takes orange too",
			sch:     BinSchedule{Today: "none", Tomorrow: "green", DaysToNext: 1},
			green:   BinInfo{Status: BinPrepareTonight, DaysUntilNext: 1},
			orange:  BinInfo{Status: BinPrepareTonight, DaysUntilNext: 1},
			display: "Prepare Green+Orange tonight",
		},
		{
			name:    "due today wins over prepare tonight",
			sch:     BinSchedule{Today: "green", Tomorrow: "black"},
			black:   BinInfo{Status: BinPrepareTonight, DaysUntilNext: 1},
			green:   BinInfo{Status: BinDueToday},
			orange:  BinInfo{Status: BinDueToday},
			display: "Green+Orange due today",
		},
		{
			name:    "countdown",
			sch:     BinSchedule{Today: "none", Tomorrow: "none", DaysToNext: 4},
			black:   BinInfo{Status: BinNextCollection, DaysUntilNext: 4},
			display: "Black bin in 4 days",
		},
		{
			name:    "nothing known",
			sch:     BinSchedule{Today: "none", Tomorrow: "none", DaysToNext: 1},
			display: "No schedule data",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := binsFromSchedule(tc.sch, testT0)
			if b.Black != tc.black || b.Green != tc.green || b.Orange != tc.orange {
				t.Fatalf("got black=%+v green=%+v orange=%+v", b.Black, b.Green, b.Orange)
			}
			if got := b.Display(); got != tc.display {
				t.Fatalf("Display() = %q, want %q", got, tc.display)
			}
			if b.Valid() != (tc.display != "No schedule data") {
				t.Fatalf("Valid() = %v", b.Valid())
			}
		})
	}
}
