//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/frictionlabs/frictiond/internal/domain"
	"github.com/frictionlabs/frictiond/internal/infra"
	"github.com/frictionlabs/frictiond/internal/shield"
	"github.com/frictionlabs/frictiond/internal/usecase"
)

var _ = Describe("Shared state across processes", func() {
	var (
		tmpDir    string
		statePath string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "frictiond-integration-*")
		Expect(err).NotTo(HaveOccurred())
		statePath = filepath.Join(tmpDir, "state.json")
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	// Each handle opens the file independently, the way separate
	// processes would.
	newStore := func() domain.StateStore {
		return infra.NewFileStateStore(statePath)
	}

	newEnforcer := func(store domain.StateStore) *usecase.BudgetEnforcer {
		return usecase.NewBudgetEnforcer(store, usecase.BudgetConfig{
			DailyLimitMinutes: 120,
			MaxUnlocksPerDay:  3,
			UnlockWindow:      30 * time.Minute,
		}, zap.NewNop())
	}

	Describe("two store handles", func() {
		It("should see each other's writes", func() {
			writer := newStore()
			reader := newStore()

			Expect(writer.SetInt(domain.KeyCurrentFrictionLevel, 2)).To(Succeed())

			level, ok, err := reader.GetInt(domain.KeyCurrentFrictionLevel)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(level).To(Equal(int64(2)))
		})
	})

	Describe("budget exhaustion", func() {
		It("should lock in one handle and render in another", func() {
			enforcer := newEnforcer(newStore())
			Expect(enforcer.AddUsage(120)).To(Succeed())

			// A shield process with its own handle sees the lock.
			resolver := shield.NewResolver(newStore(), zap.NewNop())
			Expect(resolver.Resolve().Kind).To(Equal(shield.KindBudgetLock))
		})

		It("should lift the lock for an emergency unlock window", func() {
			enforcer := newEnforcer(newStore())
			Expect(enforcer.AddUsage(120)).To(Succeed())

			result, err := enforcer.PerformEmergencyUnlock()
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Granted).To(BeTrue())
			Expect(result.RemainingToday).To(Equal(2))

			resolver := shield.NewResolver(newStore(), zap.NewNop())
			Expect(resolver.Resolve().Kind).To(Equal(shield.KindNone))
		})

		It("should exhaust the unlock quota", func() {
			enforcer := newEnforcer(newStore())
			Expect(enforcer.AddUsage(120)).To(Succeed())

			granted := 0
			for i := 0; i < 5; i++ {
				result, err := enforcer.PerformEmergencyUnlock()
				Expect(err).NotTo(HaveOccurred())
				if result.Granted {
					granted++
				}
			}
			Expect(granted).To(Equal(3))
		})
	})

	Describe("shield precedence", func() {
		It("should put the budget lock above everything", func() {
			store := newStore()
			state := domain.State{Store: store}
			Expect(state.SetFrictionLevel(3, time.Now())).To(Succeed())
			Expect(state.SetFocusSessionActive(true)).To(Succeed())
			Expect(newEnforcer(store).RecordBudgetExceeded()).To(Succeed())

			resolver := shield.NewResolver(newStore(), zap.NewNop())
			Expect(resolver.Resolve().Kind).To(Equal(shield.KindBudgetLock))
		})

		It("should show the session lock during a focus session", func() {
			store := newStore()
			ledger, err := infra.NewBoltLedger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			defer ledger.Close()

			controller := usecase.NewSessionController(store, ledger, zap.NewNop())
			_, err = controller.StartSession("deep work", 25)
			Expect(err).NotTo(HaveOccurred())

			resolver := shield.NewResolver(newStore(), zap.NewNop())
			Expect(resolver.Resolve().Kind).To(Equal(shield.KindSessionLock))

			_, err = controller.EndSession(true)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolver.Resolve().Kind).To(Equal(shield.KindNone))
		})

		It("should let a dismissal hide friction but not locks", func() {
			store := newStore()
			state := domain.State{Store: store}
			Expect(state.SetFrictionLevel(1, time.Now())).To(Succeed())

			resolver := shield.NewResolver(newStore(), zap.NewNop())
			Expect(resolver.Resolve().Kind).To(Equal(shield.KindFriction))
			Expect(resolver.Dismiss()).To(Succeed())
			Expect(resolver.Resolve().Kind).To(Equal(shield.KindNone))

			Expect(state.SetFocusSessionActive(true)).To(Succeed())
			Expect(resolver.Dismiss()).NotTo(Succeed())
		})
	})
})
