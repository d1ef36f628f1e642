package attacher

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("New", func() {
	It("rejects invalid options before touching the platform check", func() {
		_, err := New(fakeSymbols{}, fakeKprobes{}, nil, fakePrototypes{}, Options{MaxFuncCnt: -1}, nil)
		Expect(err).To(HaveOccurred())
		var attacherErr *Error
		Expect(errors.As(err, &attacherErr)).To(BeTrue())
		Expect(attacherErr.Kind).To(Equal(ErrInvalidArgument))
	})
})

var _ = Describe("glob configuration", func() {
	It("adds enforced deny globs at construction time", func() {
		a, err := New(fakeSymbols{}, fakeKprobes{}, nil, fakePrototypes{}, Options{}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(len(a.denyGlobs)).To(Equal(len(enforcedDenyGlobs)))
	})

	It("never commits an invalid deny glob", func() {
		a := newTestAttacher(allAttachable())
		before := len(a.denyGlobs)
		err := a.DenyGlob("**double")
		Expect(err).To(HaveOccurred())
		Expect(a.denyGlobs).To(HaveLen(before))
	})
})

var _ = Describe("Free", func() {
	It("is safe to call on a freshly constructed Attacher", func() {
		a := newTestAttacher(allAttachable())
		Expect(func() { a.Free() }).NotTo(Panic())
	})

	It("is safe to call twice", func() {
		a := newTestAttacher(allAttachable())
		a.Free()
		Expect(func() { a.Free() }).NotTo(Panic())
	})
})
