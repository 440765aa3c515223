package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestStatsCommand(t *testing.T) {
	_, dataDir := testDirectory(t)

	tests := []struct {
		name        string
		file        string
		wantContain []string
	}{
		{
			name:        "attribute index",
			file:        "cn.xdbm",
			wantContain: []string{"Attribute: cn", "Forward pairs: 4", "Reverse pairs: 4", "Distinct keys: 4", "Distinct ids: 4"},
		},
		{
			name:        "presence index",
			file:        "_presence.xdbm",
			wantContain: []string{"Attribute: _presence", "Forward pairs: 10", "Distinct keys: 3", "Distinct ids: 4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			output, err := captureOutput(t, func() error {
				return runStats([]string{filepath.Join(dataDir, tt.file)})
			})
			if err != nil {
				t.Fatalf("runStats() error = %v", err)
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestStatsCommandJSON(t *testing.T) {
	_, dataDir := testDirectory(t)
	resetFlags()
	jsonOut = true

	output, err := captureOutput(t, func() error {
		return runStats([]string{filepath.Join(dataDir, "mail.xdbm")})
	})
	if err != nil {
		t.Fatalf("runStats() error = %v", err)
	}

	var stats IndexStats
	decodeJSON(t, output, &stats)
	if stats.Attribute != "mail" || stats.ForwardPairs != 2 || stats.DistinctIDs != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.PageSize != 4096 {
		t.Errorf("PageSize = %d, want 4096", stats.PageSize)
	}
}

func TestDumpCommand(t *testing.T) {
	_, dataDir := testDirectory(t)
	cn := filepath.Join(dataDir, "cn.xdbm")

	tests := []struct {
		name    string
		reverse bool
		limit   int
		from    string
		want    string
	}{
		{
			name: "forward",
			want: "alice smith\t1\nalicia keys\t4\nbob jones\t2\ncarol smith\t3\n",
		},
		{
			name:    "reverse with limit",
			reverse: true,
			limit:   2,
			want:    "1\talice smith\n2\tbob jones\n",
		},
		{
			name: "from key",
			from: "b",
			want: "bob jones\t2\ncarol smith\t3\n",
		},
		{
			name: "from past the end",
			from: "zz",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			dumpReverse, dumpLimit, dumpKey = tt.reverse, tt.limit, tt.from

			output, err := captureOutput(t, func() error {
				return runDump([]string{cn})
			})
			if err != nil {
				t.Fatalf("runDump() error = %v", err)
			}
			if output != tt.want {
				t.Errorf("runDump() output = %q, want %q", output, tt.want)
			}
		})
	}
}

func TestDumpCommandBinaryKeys(t *testing.T) {
	_, dataDir := testDirectory(t)
	resetFlags()
	jsonOut = true
	dumpLimit = 1

	output, err := captureOutput(t, func() error {
		return runDump([]string{filepath.Join(dataDir, "uidnumber.xdbm")})
	})
	if err != nil {
		t.Fatalf("runDump() error = %v", err)
	}

	var pairs []Pair
	decodeJSON(t, output, &pairs)
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(pairs))
	}
	if pairs[0].Key != "0x80000000000003e7" || pairs[0].ID != 4 {
		t.Errorf("first pair = %+v, want 999 for entry 4", pairs[0])
	}
}

func TestLookupCommand(t *testing.T) {
	_, dataDir := testDirectory(t)

	tests := []struct {
		name     string
		file     string
		value    string
		matching string
		byID     bool
		want     string
		wantErr  bool
	}{
		{name: "normalized value", file: "cn.xdbm", value: "  ALICE   smith ", want: "1\n"},
		{name: "missing value", file: "cn.xdbm", value: "dave", want: ""},
		{name: "integer", file: "uidnumber.xdbm", value: "1002", matching: "integerMatch", want: "2\n"},
		{name: "invalid integer", file: "uidnumber.xdbm", value: "many", matching: "integerMatch", wantErr: true},
		{name: "unknown rule", file: "cn.xdbm", value: "x", matching: "fuzzyMatch", wantErr: true},
		{name: "by id", file: "cn.xdbm", value: "3", byID: true, want: "carol smith\n"},
		{name: "presence by id", file: "_presence.xdbm", value: "1", byID: true, want: "cn\nmail\nuidnumber\n"},
		{name: "invalid id", file: "cn.xdbm", value: "three", byID: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			lookupMatching, lookupID = tt.matching, tt.byID

			output, err := captureOutput(t, func() error {
				return runLookup([]string{filepath.Join(dataDir, tt.file), tt.value})
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("runLookup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && output != tt.want {
				t.Errorf("runLookup() output = %q, want %q", output, tt.want)
			}
		})
	}
}

func TestVerifyCommand(t *testing.T) {
	_, dataDir := testDirectory(t)
	resetFlags()

	files := []string{
		filepath.Join(dataDir, "cn.xdbm"),
		filepath.Join(dataDir, "uidnumber.xdbm"),
		filepath.Join(dataDir, "_presence.xdbm"),
	}
	output, err := captureOutput(t, func() error {
		return runVerify(files)
	})
	if err != nil {
		t.Fatalf("runVerify() error = %v", err)
	}
	assertContains(t, output, []string{"cn.xdbm: OK", "uidnumber.xdbm: OK", "_presence.xdbm: OK"})

	jsonOut = true
	output, err = captureOutput(t, func() error {
		return runVerify([]string{files[0], filepath.Join(dataDir, "missing.xdbm")})
	})
	if !errors.Is(err, errVerifyFailed) {
		t.Fatalf("runVerify() error = %v, want %v", err, errVerifyFailed)
	}

	var results []VerifyResult
	decodeJSON(t, output, &results)
	if len(results) != 2 || !results[0].Valid || results[1].Valid || results[1].Error == "" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestSearchCommand(t *testing.T) {
	cfgPath, _ := testDirectory(t)

	tests := []struct {
		name    string
		filter  string
		plan    bool
		want    string
		wantErr bool
	}{
		{name: "equality", filter: "(cn=alice smith)", want: "1\n"},
		{name: "substring", filter: "(cn=*smith)", want: "1\n3\n"},
		{name: "conjunction", filter: "(&(mail=*)(uidNumber>=1002))", want: "3\n"},
		{name: "disjunction", filter: "(|(cn=bob*)(uidNumber<=999))", want: "2\n4\n"},
		{name: "plan", filter: "(cn=alice smith)", plan: true, want: "INDEX(1)\n"},
		{name: "not indexable", filter: "(sn=smith)", wantErr: true},
		{name: "parse error", filter: "(cn=alice", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			searchConfig, searchPlan = cfgPath, tt.plan

			output, err := captureOutput(t, func() error {
				return runSearch(context.Background(), []string{tt.filter})
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("runSearch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && output != tt.want {
				t.Errorf("runSearch() output = %q, want %q", output, tt.want)
			}
		})
	}
}

func TestSearchCommandJSON(t *testing.T) {
	cfgPath, _ := testDirectory(t)
	resetFlags()
	searchConfig, jsonOut = cfgPath, true

	output, err := captureOutput(t, func() error {
		return runSearch(context.Background(), []string{"(uidNumber>=5000)"})
	})
	if err != nil {
		t.Fatalf("runSearch() error = %v", err)
	}

	var result SearchResult
	decodeJSON(t, output, &result)
	if result.Filter != "(uidNumber>=5000)" || len(result.IDs) != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Estimate != "INDEX(<=0)" {
		t.Errorf("Estimate = %q, want INDEX(<=0)", result.Estimate)
	}
}

func TestSearchCommandMissingDataDir(t *testing.T) {
	cfgPath, _ := testDirectory(t)
	resetFlags()
	searchConfig = cfgPath
	searchDataDir = filepath.Join(t.TempDir(), "empty")

	_, err := captureOutput(t, func() error {
		return runSearch(context.Background(), []string{"(cn=alice smith)"})
	})
	if err == nil {
		t.Fatal("runSearch() on a missing data directory should fail")
	}
}

func TestConfigValidateCommand(t *testing.T) {
	cfgPath, _ := testDirectory(t)
	resetFlags()
	configFile = cfgPath

	output, err := captureOutput(t, runConfigValidate)
	if err != nil {
		t.Fatalf("runConfigValidate() error = %v", err)
	}
	assertContains(t, output, []string{"Configuration is valid"})
}

func TestConfigInitCommand(t *testing.T) {
	resetFlags()
	output, err := captureOutput(t, func() error {
		return configInitCmd.RunE(configInitCmd, nil)
	})
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	assertContains(t, output, []string{"dataDir: /var/lib/oba/index", "attribute: objectClass", "countScanLimit: 1000"})
}
