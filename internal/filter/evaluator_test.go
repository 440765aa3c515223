package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oba-ldap/xdbm/internal/config"
	"github.com/oba-ldap/xdbm/internal/index"
	"github.com/oba-ldap/xdbm/internal/matching"
)

func newDirectory(t testing.TB, backend string) *index.Manager {
	t.Helper()

	defs := []config.IndexConfig{
		{Attribute: "cn", Backend: backend, Matching: matching.CaseIgnoreMatch},
		{Attribute: "uidNumber", Backend: backend, Matching: matching.IntegerMatch},
		{Attribute: "mail", Backend: backend},
	}
	m, err := index.NewManager(config.StorageConfig{DataDir: t.TempDir()}, defs, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	add := func(id uint64, cn, uidNumber, mail string) {
		e := index.NewEntry(id, "uid=user"+uidNumber+",dc=example,dc=com")
		e.SetAttribute("cn", [][]byte{[]byte(cn)})
		e.SetAttribute("uidNumber", [][]byte{[]byte(uidNumber)})
		if mail != "" {
			e.SetAttribute("mail", [][]byte{[]byte(mail)})
		}
		require.NoError(t, m.IndexEntry(e))
	}
	add(1, "Alice Smith", "1001", "alice@example.com")
	add(2, "Bob Jones", "1002", "")
	add(3, "Carol Smith", "1003", "carol@example.com")
	add(4, "Alicia Keys", "999", "")
	return m
}

func forEachBackend(t *testing.T, fn func(t *testing.T, m *index.Manager)) {
	for _, backend := range []string{config.BackendMemory, config.BackendDisk} {
		t.Run(backend, func(t *testing.T) {
			fn(t, newDirectory(t, backend))
		})
	}
}

func TestEvaluator_Candidates(t *testing.T) {
	tests := []struct {
		filter string
		want   []uint64
	}{
		{"(cn=alice smith)", []uint64{1}},
		{"(cn=ALICE   Smith)", []uint64{1}},
		{"(cn=nobody)", nil},
		{"(mail=*)", []uint64{1, 3}},
		{"(uidNumber>=1002)", []uint64{2, 3}},
		{"(uidNumber<=1001)", []uint64{1, 4}},
		{"(uidNumber>=5000)", nil},
		{"(cn=ali*)", []uint64{1, 4}},
		{"(cn=*smith)", []uint64{1, 3}},
		{"(cn=*o*)", []uint64{2, 3}},
		{"(cn=c*l*h)", []uint64{3}},
		{"(&(cn=*smith)(uidNumber>=1002))", []uint64{3}},
		{"(&(mail=*)(!(cn=carol smith)))", []uint64{1}},
		{"(&(cn=bob jones)(sn=jones))", []uint64{2}},
		{"(&(uidNumber<=1002)(|(cn=bob*)(mail=*)))", []uint64{1, 2}},
		{"(&(uidNumber>=1000)(cn=*e*))", []uint64{1, 2}},
		{"(|(cn=bob jones)(uidNumber<=999))", []uint64{2, 4}},
		{"(|(cn=alice smith)(cn=*smith))", []uint64{1, 3}},
	}

	forEachBackend(t, func(t *testing.T, m *index.Manager) {
		ev := NewEvaluator(m, nil)
		for _, tt := range tests {
			f, err := Parse(tt.filter)
			require.NoError(t, err, tt.filter)

			got, err := ev.Candidates(context.Background(), f)
			require.NoError(t, err, tt.filter)
			assert.Equal(t, tt.want, got, tt.filter)
		}
	})
}

func TestEvaluator_NotIndexable(t *testing.T) {
	m := newDirectory(t, config.BackendMemory)
	ev := NewEvaluator(m, nil)

	for _, s := range []string{
		"(!(cn=alice smith))",
		"(sn=smith)",
		"(sn=*)",
		"(&(sn=a)(!(cn=b)))",
		"(|(cn=bob jones)(sn=x))",
	} {
		f, err := Parse(s)
		require.NoError(t, err)
		_, err = ev.Candidates(context.Background(), f)
		assert.ErrorIs(t, err, ErrNotIndexable, s)
	}
}

func TestEvaluator_InvalidValue(t *testing.T) {
	m := newDirectory(t, config.BackendMemory)
	ev := NewEvaluator(m, nil)

	_, err := ev.Candidates(context.Background(), GreaterOrEqual("uidNumber", []byte("lots")))
	assert.ErrorIs(t, err, matching.ErrInvalidValue)
}

func TestEvaluator_VerifyNegationError(t *testing.T) {
	forEachBackend(t, func(t *testing.T, m *index.Manager) {
		ev := NewEvaluator(m, nil)

		ok, err := ev.verify(Not(GreaterOrEqual("uidNumber", []byte("lots"))), 1)
		assert.ErrorIs(t, err, matching.ErrInvalidValue)
		assert.False(t, ok)

		ok, err = ev.verify(Not(Equal("cn", []byte("bob jones"))), 1)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestEvaluator_Cancelled(t *testing.T) {
	forEachBackend(t, func(t *testing.T, m *index.Manager) {
		ev := NewEvaluator(m, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := ev.Candidates(ctx, Present("cn"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPlanner_Estimate(t *testing.T) {
	m := newDirectory(t, config.BackendMemory)
	p := NewPlanner(m)

	tests := []struct {
		filter string
		want   Estimate
	}{
		{"(cn=alice smith)", Estimate{Indexed: true, Count: 1, Exact: true}},
		{"(mail=*)", Estimate{Indexed: true, Count: 2, Exact: true}},
		{"(uidNumber>=1002)", Estimate{Indexed: true, Count: 2, Exact: true}},
		{"(uidNumber<=1001)", Estimate{Indexed: true, Count: 2, Exact: true}},
		{"(cn=*smith)", Estimate{Indexed: true, Count: 4}},
		{"(&(mail=*)(cn=alice smith))", Estimate{Indexed: true, Count: 1}},
		{"(|(cn=alice smith)(mail=*))", Estimate{Indexed: true, Count: 3}},
		{"(|(cn=alice smith))", Estimate{Indexed: true, Count: 1, Exact: true}},
	}

	for _, tt := range tests {
		f, err := Parse(tt.filter)
		require.NoError(t, err)
		got, err := p.Estimate(f)
		require.NoError(t, err, tt.filter)
		assert.Equal(t, tt.want, got, tt.filter)
	}

	for _, s := range []string{"(!(cn=x))", "(sn=x)", "(|(cn=x)(sn=y))", "(&(sn=x)(sn=y))"} {
		f, err := Parse(s)
		require.NoError(t, err)
		got, err := p.Estimate(f)
		require.NoError(t, err)
		assert.False(t, got.Indexed, s)
		assert.Equal(t, "FULL_SCAN", got.String())
	}
}

func TestPlanner_DiskCountsAreBounds(t *testing.T) {
	m := newDirectory(t, config.BackendDisk)
	p := NewPlanner(m)

	f, err := Parse("(uidNumber>=1000)")
	require.NoError(t, err)
	got, err := p.Estimate(f)
	require.NoError(t, err)
	assert.True(t, got.Indexed)
	assert.False(t, got.Exact)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, "INDEX(<=3)", got.String())

	f, err = Parse("(cn=bob jones)")
	require.NoError(t, err)
	got, err = p.Estimate(f)
	require.NoError(t, err)
	assert.Equal(t, "INDEX(1)", got.String())
}
