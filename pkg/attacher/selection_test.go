package attacher

import (
	"log/slog"

	"github.com/cilium/ebpf/btf"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func intArg() btf.Type { return &btf.Int{Name: "int", Size: 4} }

func fakeFunc(name string, argCount int) *btf.Func {
	params := make([]btf.FuncParam, argCount)
	for i := range params {
		params[i] = btf.FuncParam{Name: "a", Type: intArg()}
	}
	return &btf.Func{
		Name: name,
		Type: &btf.FuncProto{Return: intArg(), Params: params},
	}
}

func newTestAttacher(kprobes KprobeSet) *Attacher {
	return &Attacher{
		opts:       Options{},
		log:        slog.Default(),
		kprobes:    kprobes,
		denyGlobs:  mustCompileEnforced(),
		allowGlobs: nil,
	}
}

var _ = Describe("selection engine", func() {
	var kprobes fakeKprobes

	BeforeEach(func() {
		kprobes = allAttachable("sys_open", "sys_close", "vfs_read", "vfs_write", "tcp_sendmsg", "rcu_read_lock")
	})

	It("denies only the globbed subset (scenario 1)", func() {
		a := newTestAttacher(kprobes)
		Expect(a.DenyGlob("sys_*")).To(Succeed())

		_, openSelected := a.evaluate("sys_open", fakeFunc("sys_open", 1))
		_, closeSelected := a.evaluate("sys_close", fakeFunc("sys_close", 1))
		_, readSelected := a.evaluate("vfs_read", fakeFunc("vfs_read", 2))

		Expect(openSelected).To(BeFalse())
		Expect(closeSelected).To(BeFalse())
		Expect(readSelected).To(BeTrue())
	})

	It("selects only the allow-globbed subset (scenario 2)", func() {
		a := newTestAttacher(kprobes)
		Expect(a.AllowGlob("vfs_*")).To(Succeed())

		_, readSelected := a.evaluate("vfs_read", fakeFunc("vfs_read", 2))
		_, writeSelected := a.evaluate("vfs_write", fakeFunc("vfs_write", 3))
		_, tcpSelected := a.evaluate("tcp_sendmsg", fakeFunc("tcp_sendmsg", 3))

		Expect(readSelected).To(BeTrue())
		Expect(writeSelected).To(BeTrue())
		Expect(tcpSelected).To(BeFalse())
	})

	It("always denies the enforced list regardless of caller configuration (scenario 3)", func() {
		a := newTestAttacher(kprobes)
		_, selected := a.evaluate("rcu_read_lock", fakeFunc("rcu_read_lock", 0))
		Expect(selected).To(BeFalse())
	})

	It("rejects a function with more than 11 parameters (scenario 4)", func() {
		a := newTestAttacher(kprobes)
		_, selected := a.evaluate("vfs_read", fakeFunc("vfs_read", 12))
		Expect(selected).To(BeFalse())
	})

	It("rejects a void-returning function (scenario 5)", func() {
		a := newTestAttacher(kprobes)
		fn := &btf.Func{Name: "vfs_read", Type: &btf.FuncProto{Return: &btf.Void{}, Params: nil}}
		_, selected := a.evaluate("vfs_read", fn)
		Expect(selected).To(BeFalse())
	})

	It("skips a name absent from the kprobe oracle", func() {
		a := newTestAttacher(allAttachable("vfs_write"))
		_, selected := a.evaluate("vfs_read", fakeFunc("vfs_read", 2))
		Expect(selected).To(BeFalse())
	})

	It("is idempotent when the same allow glob is added twice", func() {
		a := newTestAttacher(kprobes)
		Expect(a.AllowGlob("vfs_*")).To(Succeed())
		Expect(a.AllowGlob("vfs_*")).To(Succeed())
		Expect(a.allowGlobs).To(HaveLen(2))

		_, selected := a.evaluate("vfs_read", fakeFunc("vfs_read", 2))
		Expect(selected).To(BeTrue())
	})

	It("rejects an invalid glob without mutating existing state", func() {
		a := newTestAttacher(kprobes)
		Expect(a.AllowGlob("vfs_*")).To(Succeed())
		err := a.AllowGlob("v*fs*")
		Expect(err).To(HaveOccurred())
		Expect(a.allowGlobs).To(HaveLen(1))
	})
})
