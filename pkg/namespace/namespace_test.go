package namespace

import (
	"testing"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/collection"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/logging"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
)

func TestCreateNamespaceStartsActive(t *testing.T) {
	s, err := Open(t.TempDir(), logging.Nop())
	if err != nil {
		t.Fatalf("open supervisor: %v", err)
	}

	ns, err := s.CreateNamespace("tenant-a", collection.DefaultConfig(3, vector.Cosine), Quota{})
	if err != nil {
		t.Fatalf("create namespace: %v", err)
	}
	if ns.Status() != Active {
		t.Fatalf("expected new namespace to be Active, got %v", ns.Status())
	}

	if _, err := s.CreateNamespace("tenant-a", collection.DefaultConfig(3, vector.Cosine), Quota{}); err == nil {
		t.Fatalf("expected duplicate namespace id to be rejected")
	}
}

func TestSetStatusForbidsWrites(t *testing.T) {
	s, err := Open(t.TempDir(), logging.Nop())
	if err != nil {
		t.Fatalf("open supervisor: %v", err)
	}
	ns, err := s.CreateNamespace("tenant-a", collection.DefaultConfig(3, vector.Cosine), Quota{})
	if err != nil {
		t.Fatalf("create namespace: %v", err)
	}

	if err := s.SetStatus("tenant-a", ReadOnly); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := ns.Allow(true); err == nil {
		t.Fatalf("expected write to be rejected on a ReadOnly namespace")
	}
	if err := ns.Allow(false); err != nil {
		t.Fatalf("expected read to be allowed on a ReadOnly namespace, got %v", err)
	}

	if err := s.SetStatus("tenant-a", Suspended); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := ns.Allow(false); err == nil {
		t.Fatalf("expected read to be rejected on a Suspended namespace")
	}
}

func TestCheckRecordCap(t *testing.T) {
	s, err := Open(t.TempDir(), logging.Nop())
	if err != nil {
		t.Fatalf("open supervisor: %v", err)
	}
	ns, err := s.CreateNamespace("tenant-a", collection.DefaultConfig(3, vector.Cosine), Quota{MaxVectors: 2})
	if err != nil {
		t.Fatalf("create namespace: %v", err)
	}

	if err := ns.CheckRecordCap(1, 1); err != nil {
		t.Fatalf("expected 1+1=2 to fit under a cap of 2, got %v", err)
	}
	if err := ns.CheckRecordCap(2, 1); err == nil {
		t.Fatalf("expected 2+1=3 to exceed a cap of 2")
	}
}

func TestCheckBatchSizeAndResultsPerQuery(t *testing.T) {
	s, err := Open(t.TempDir(), logging.Nop())
	if err != nil {
		t.Fatalf("open supervisor: %v", err)
	}
	ns, err := s.CreateNamespace("tenant-a", collection.DefaultConfig(3, vector.Cosine),
		Quota{MaxBatchSize: 2, MaxResultsPerQuery: 5, MaxConcurrentQueries: 1})
	if err != nil {
		t.Fatalf("create namespace: %v", err)
	}

	if err := ns.CheckBatchSize(2); err != nil {
		t.Fatalf("expected batch of 2 to fit under a cap of 2, got %v", err)
	}
	if err := ns.CheckBatchSize(3); err == nil {
		t.Fatalf("expected batch of 3 to exceed a cap of 2")
	}

	if err := ns.CheckResultsPerQuery(5); err != nil {
		t.Fatalf("expected k=5 to fit under a cap of 5, got %v", err)
	}
	if err := ns.CheckResultsPerQuery(6); err == nil {
		t.Fatalf("expected k=6 to exceed a cap of 5")
	}

	release, err := ns.AcquireQuery()
	if err != nil {
		t.Fatalf("expected first concurrent query slot to be granted, got %v", err)
	}
	if _, err := ns.AcquireQuery(); err == nil {
		t.Fatalf("expected second concurrent query to exceed a cap of 1")
	}
	release()
	if release2, err := ns.AcquireQuery(); err != nil {
		t.Fatalf("expected slot to be available after release, got %v", err)
	} else {
		release2()
	}
}

func TestMaxCollectionsQuota(t *testing.T) {
	s, err := Open(t.TempDir(), logging.Nop())
	if err != nil {
		t.Fatalf("open supervisor: %v", err)
	}
	if _, err := s.CreateNamespace("a", collection.DefaultConfig(3, vector.Cosine), Quota{MaxCollections: 1}); err != nil {
		t.Fatalf("create namespace a: %v", err)
	}
	if _, err := s.CreateNamespace("b", collection.DefaultConfig(3, vector.Cosine), Quota{}); err == nil {
		t.Fatalf("expected second namespace to exceed a supervisor-wide cap of 1")
	}
}

func TestDeleteNamespaceRemovesDirectory(t *testing.T) {
	s, err := Open(t.TempDir(), logging.Nop())
	if err != nil {
		t.Fatalf("open supervisor: %v", err)
	}
	if _, err := s.CreateNamespace("tenant-a", collection.DefaultConfig(3, vector.Cosine), Quota{}); err != nil {
		t.Fatalf("create namespace: %v", err)
	}

	if err := s.DeleteNamespace("tenant-a"); err != nil {
		t.Fatalf("delete namespace: %v", err)
	}
	if _, err := s.GetNamespace("tenant-a"); err == nil {
		t.Fatalf("expected deleted namespace to be gone")
	}
}

func TestAggregateStatsSumsActiveNamespaces(t *testing.T) {
	s, err := Open(t.TempDir(), logging.Nop())
	if err != nil {
		t.Fatalf("open supervisor: %v", err)
	}

	nsA, err := s.CreateNamespace("a", collection.DefaultConfig(3, vector.Cosine), Quota{})
	if err != nil {
		t.Fatalf("create namespace a: %v", err)
	}
	collA, err := nsA.Collection()
	if err != nil {
		t.Fatalf("open collection a: %v", err)
	}
	if err := collA.Upsert("x", vector.NewDense([]float32{1, 0, 0}), nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	nsB, err := s.CreateNamespace("b", collection.DefaultConfig(3, vector.Cosine), Quota{})
	if err != nil {
		t.Fatalf("create namespace b: %v", err)
	}
	if err := s.SetStatus("b", Suspended); err != nil {
		t.Fatalf("suspend b: %v", err)
	}
	_ = nsB

	agg, err := s.AggregateStats()
	if err != nil {
		t.Fatalf("aggregate stats: %v", err)
	}
	if agg.NamespaceCount != 1 || agg.LiveRecords != 1 {
		t.Fatalf("expected stats only from the active namespace, got %+v", agg)
	}
}
