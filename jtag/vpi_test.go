package jtag_test

import (
	"bytes"
	"io"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/difftest/jtag"
)

type pulse struct {
	tms bool
	tdi bool
}

var _ = Describe("VPI", func() {
	var (
		log    *bytes.Buffer
		vpi    *jtag.VPI
		pins   *jtag.Pins
		client net.Conn
	)

	send := func(rec *jtag.Record) {
		data, err := rec.MarshalBinary()
		Expect(err).NotTo(HaveOccurred())
		_, err = client.Write(data)
		Expect(err).NotTo(HaveOccurred())
	}

	awaitCommand := func() {
		Eventually(func() jtag.State {
			vpi.Tick(pins)
			return vpi.State()
		}, time.Second).ShouldNot(Equal(jtag.CheckCmd))
	}

	// run clocks the current sequence to completion with TDO looped back to
	// TDI, returning the pin levels seen while TCK was high.
	run := func() []pulse {
		var pulses []pulse
		for i := 0; i < 100000 && vpi.State() != jtag.CheckCmd; i++ {
			vpi.Tick(pins)
			if pins.TCK {
				pulses = append(pulses, pulse{tms: pins.TMS, tdi: pins.TDI})
			}
			pins.TDO = pins.TDI
		}
		return pulses
	}

	BeforeEach(func() {
		log = &bytes.Buffer{}
		pins = &jtag.Pins{}

		var err error
		vpi, err = jtag.NewVPI(
			jtag.WithPort(0),
			jtag.WithPollWindow(2*time.Millisecond),
			jtag.WithLog(log),
		)
		Expect(err).NotTo(HaveOccurred())

		client, err = net.Dial("tcp", vpi.Addr())
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() bool {
			vpi.Tick(pins)
			return vpi.Attached()
		}, time.Second).Should(BeTrue())
	})

	AfterEach(func() {
		_ = client.Close()
		Expect(vpi.Close()).To(Succeed())
	})

	It("should log the listening address", func() {
		Expect(log.String()).To(ContainSubstring("JTAG vpi server listening at"))
	})

	It("should hold TMS high for five pulses and then idle for one", func() {
		send(&jtag.Record{Cmd: jtag.CmdReset})
		awaitCommand()
		Expect(vpi.State()).To(Equal(jtag.TapReset))

		pulses := run()

		Expect(pulses).To(HaveLen(6))
		for _, p := range pulses[:5] {
			Expect(p.tms).To(BeTrue())
		}
		Expect(pulses[5].tms).To(BeFalse())
		Expect(pins.TMS).To(BeFalse())
		Expect(vpi.State()).To(Equal(jtag.CheckCmd))
	})

	It("should shift a TMS sequence LSB first", func() {
		rec := &jtag.Record{Cmd: jtag.CmdTMSSeq, NbBits: 3}
		rec.BufferOut[0] = 0b101
		send(rec)
		awaitCommand()

		pulses := run()

		Expect(pulses).To(Equal([]pulse{
			{tms: true}, {tms: false}, {tms: true},
		}))
		Expect(pins.TMS).To(BeFalse())
	})

	It("should capture TDO and write the record back after a scan", func() {
		rec := &jtag.Record{Cmd: jtag.CmdScanChain, NbBits: 12, Length: 2}
		rec.BufferOut[0] = 0x96
		rec.BufferOut[1] = 0x0a
		send(rec)
		awaitCommand()

		pulses := run()
		Expect(pulses).To(HaveLen(12))
		for _, p := range pulses {
			Expect(p.tms).To(BeFalse())
		}
		Expect(pins.TDI).To(BeFalse())

		reply := make([]byte, jtag.RecordSize)
		Expect(client.SetReadDeadline(time.Now().Add(time.Second))).To(Succeed())
		_, err := io.ReadFull(client, reply)
		Expect(err).NotTo(HaveOccurred())

		var back jtag.Record
		Expect(back.UnmarshalBinary(reply)).To(Succeed())
		Expect(back.Cmd).To(Equal(jtag.CmdScanChain))
		Expect(back.NbBits).To(Equal(uint32(12)))
		Expect(back.Length).To(Equal(uint32(2)))
		Expect(back.BufferIn[0]).To(Equal(byte(0x96)))
		Expect(back.BufferIn[1]).To(Equal(byte(0x0a)))
	})

	It("should raise TMS on the last bit of a flip scan", func() {
		rec := &jtag.Record{Cmd: jtag.CmdScanChainFlipTMS, NbBits: 4}
		send(rec)
		awaitCommand()

		pulses := run()

		Expect(pulses).To(HaveLen(4))
		Expect(pulses[0].tms).To(BeFalse())
		Expect(pulses[1].tms).To(BeFalse())
		Expect(pulses[2].tms).To(BeFalse())
		Expect(pulses[3].tms).To(BeTrue())
		Expect(pins.TMS).To(BeFalse())
	})

	It("should assemble a record across short reads", func() {
		data, err := (&jtag.Record{Cmd: jtag.CmdReset}).MarshalBinary()
		Expect(err).NotTo(HaveOccurred())

		_, err = client.Write(data[:100])
		Expect(err).NotTo(HaveOccurred())
		for i := 0; i < 20; i++ {
			vpi.Tick(pins)
		}
		Expect(vpi.State()).To(Equal(jtag.CheckCmd))

		_, err = client.Write(data[100:])
		Expect(err).NotTo(HaveOccurred())
		awaitCommand()
		Expect(vpi.State()).To(Equal(jtag.TapReset))
	})

	It("should report a stop request", func() {
		Expect(vpi.StopRequested()).To(BeFalse())
		send(&jtag.Record{Cmd: jtag.CmdStopSimu})

		Eventually(func() bool {
			vpi.Tick(pins)
			return vpi.StopRequested()
		}, time.Second).Should(BeTrue())
		Expect(vpi.State()).To(Equal(jtag.CheckCmd))
	})

	It("should abort a long scan when the debugger hangs up", func() {
		send(&jtag.Record{Cmd: jtag.CmdScanChain, NbBits: jtag.MaxBits})
		awaitCommand()
		Expect(client.Close()).To(Succeed())

		for i := 0; i < 200 && vpi.State() != jtag.CheckCmd; i++ {
			vpi.Tick(pins)
		}

		Expect(vpi.State()).To(Equal(jtag.CheckCmd))
		Expect(vpi.Attached()).To(BeFalse())
		Expect(pins.TCK).To(BeFalse())
		Expect(log.String()).To(ContainSubstring("JTAG debugger detached"))
	})

	It("should keep a record sent while a sequence runs", func() {
		seq := &jtag.Record{Cmd: jtag.CmdTMSSeq, NbBits: 8}
		send(seq)
		awaitCommand()
		Expect(vpi.State()).To(Equal(jtag.DoTMSSeq))
		send(&jtag.Record{Cmd: jtag.CmdReset})

		run()
		awaitCommand()
		Expect(vpi.State()).To(Equal(jtag.TapReset))
	})

	It("should go back to waiting for a debugger after a hang-up", func() {
		Expect(client.Close()).To(Succeed())

		Eventually(func() bool {
			vpi.Tick(pins)
			return vpi.Attached()
		}, time.Second).Should(BeFalse())
		Expect(log.String()).To(ContainSubstring("JTAG debugger detached"))
	})
})

var _ = Describe("VPI transitions", func() {
	It("should leave unknown pairs untouched", func() {
		vpi, err := jtag.NewVPI(jtag.WithPort(0), jtag.WithLog(io.Discard))
		Expect(err).NotTo(HaveOccurred())
		defer vpi.Close()

		pins := &jtag.Pins{TMS: true}
		vpi.Fire(jtag.EvRise, pins)

		Expect(vpi.State()).To(Equal(jtag.CheckCmd))
		Expect(pins.TMS).To(BeTrue())
	})

	It("should abort a sequence on detach", func() {
		vpi, err := jtag.NewVPI(jtag.WithPort(0), jtag.WithLog(io.Discard))
		Expect(err).NotTo(HaveOccurred())
		defer vpi.Close()

		pins := &jtag.Pins{}
		vpi.Fire(jtag.EvCmdReset, pins)
		Expect(vpi.State()).To(Equal(jtag.TapReset))
		vpi.Fire(jtag.EvShift, pins)
		Expect(pins.TMS).To(BeTrue())

		vpi.Fire(jtag.EvDetach, pins)
		Expect(vpi.State()).To(Equal(jtag.CheckCmd))
		Expect(pins.TMS).To(BeFalse())
		Expect(pins.TCK).To(BeFalse())
	})
})
