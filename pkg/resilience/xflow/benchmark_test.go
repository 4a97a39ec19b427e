package xflow

import (
	"testing"
)

func BenchmarkCheckAdmissionRelease(b *testing.B) {
	fs, err := New()
	if err != nil {
		b.Fatal(err)
	}
	defer fs.Close()
	chain := NewChain(cfg(nodeID, 0, 0), cfg(svcID, 1_000_000, 0), cfg(apiID, 0, 0))

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if fs.CheckAdmission(chain, bucket0).Allowed {
				fs.Release(chain, bucket0, 3, true, 200)
			}
		}
	})
}

func BenchmarkAcquireResource(b *testing.B) {
	fs, err := New()
	if err != nil {
		b.Fatal(err)
	}
	defer fs.Close()

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if fs.AcquireResource(svcID, bucket0, 1_000_000, 0).Allowed {
				fs.ReleaseResource(svcID, bucket0, 3, true, 200)
			}
		}
	})
}

func BenchmarkWindowStat(b *testing.B) {
	fs, err := New()
	if err != nil {
		b.Fatal(err)
	}
	defer fs.Close()
	rs := fs.resource(svcID)
	for i := range int64(300) {
		rs.TimeSlot(bucket0 + i*1000).Incr()
	}

	b.ResetTimer()
	for range b.N {
		_ = fs.WindowStat(svcID, bucket0, bucket0+300_000)
	}
}
