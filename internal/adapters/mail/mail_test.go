package mail

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
)

var today = time.Date(2021, 3, 11, 14, 30, 0, 0, time.UTC)

func TestContent(t *testing.T) {
	Convey("Given a new subscriber", t, func() {
		m := Confirmation("ada@example.com", today)

		So(m.ID, ShouldNotBeBlank)
		So(m.Kind, ShouldEqual, KindConfirmation)
		So(m.Subject, ShouldEqual, "Subscription Successful, 2021-03-11")
		So(m.Body, ShouldEqual, "You are subscribed for covid 19 updates!")
		So(m.HTML, ShouldBeFalse)
	})

	Convey("Given a requested update with two matching rows", t, func() {
		rows := []model.DerivedRecord{
			{County: "Washington", State: "Oregon", Cases: 30, CasesAvgPer100k: 12.5, PotentialRisk: 0.0024},
			{County: "Washington", State: "Oregon", Cases: 4, CasesAvgPer100k: 1, PotentialRisk: 0.004},
		}
		m, err := Update(KindUpdate, Recipient{FirstName: "Ada", LastName: "<Byron>", Email: "ada@example.com"}, rows, today)
		So(err, ShouldBeNil)

		Convey("Then the subject is dated and the body is an html table", func() {
			So(m.Subject, ShouldEqual, "Requested update for 2021-03-11")
			So(m.HTML, ShouldBeTrue)
			So(m.To, ShouldEqual, "ada@example.com")

			doc, err := goquery.NewDocumentFromReader(strings.NewReader(m.Body))
			So(err, ShouldBeNil)
			So(doc.Find("p").Text(), ShouldStartWith, "Hello Ada <Byron>!")
			So(doc.Find("thead th").Length(), ShouldEqual, 6)
			So(doc.Find("tbody tr").Length(), ShouldEqual, 2)
			first := doc.Find("tbody tr").First().Find("td")
			So(first.Eq(0).Text(), ShouldEqual, "Washington")
			So(first.Eq(3).Text(), ShouldEqual, "12.5")
			So(first.Eq(4).Text(), ShouldEqual, "0.0024")
		})

		Convey("Then names are escaped", func() {
			So(m.Body, ShouldContainSubstring, "&lt;Byron&gt;")
		})
	})
}

func TestLogMailer(t *testing.T) {
	Convey("Given a log mailer", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithWriter(&buf)), ShouldBeNil)
		mailer := NewLogMailer(logger.Get())

		err := mailer.Send(context.Background(), Confirmation("ada@example.com", today))

		So(err, ShouldBeNil)
		So(buf.String(), ShouldContainSubstring, "ada@example.com")
		So(errors.Is(mailer.Send(context.Background(), Message{}), ErrNoRecipient), ShouldBeTrue)
	})
}

type capture struct {
	addr  string
	from  string
	to    []string
	raw   string
	err   error
	calls int
}

func (c *capture) send(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
	c.calls++
	c.addr, c.from, c.to, c.raw = addr, from, to, string(msg)
	return c.err
}

func TestSMTPMailer(t *testing.T) {
	cfg := SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "maps@example.com"}

	Convey("Given an smtp mailer with a fake relay", t, func() {
		c := &capture{}
		m := NewSMTPMailer(cfg, WithSMTPClock(clockwork.NewFakeClockAt(today)))
		m.send = c.send

		Convey("When an html message is sent", func() {
			msg, err := Update(KindUpdate, Recipient{FirstName: "A", LastName: "B", Email: "ab@example.com"}, nil, today)
			So(err, ShouldBeNil)
			So(m.Send(context.Background(), msg), ShouldBeNil)

			Convey("Then the envelope and headers are set", func() {
				So(c.addr, ShouldEqual, "smtp.example.com:587")
				So(c.from, ShouldEqual, "maps@example.com")
				So(c.to, ShouldResemble, []string{"ab@example.com"})
				So(c.raw, ShouldContainSubstring, "Subject: Requested update for 2021-03-11\r\n")
				So(c.raw, ShouldContainSubstring, "Content-Type: text/html; charset=\"utf-8\"\r\n")
				So(c.raw, ShouldContainSubstring, "Message-ID: <"+msg.ID+"@covidmap>\r\n")
				So(c.raw, ShouldContainSubstring, "Date: Thu, 11 Mar 2021 14:30:00 +0000\r\n")
			})
		})

		Convey("When the relay keeps failing", func() {
			c.err = errors.New("connection refused")
			var last error
			for i := 0; i < 7; i++ {
				last = m.Send(context.Background(), Confirmation("x@example.com", today))
			}

			Convey("Then the breaker opens and stops calling the relay", func() {
				So(c.calls, ShouldEqual, 5)
				So(errors.Is(last, ErrCircuitOpen), ShouldBeTrue)
				So(m.State(), ShouldEqual, "open")
			})
		})

		Convey("When the message has no recipient", func() {
			So(errors.Is(m.Send(context.Background(), Message{}), ErrNoRecipient), ShouldBeTrue)
			So(c.calls, ShouldEqual, 0)
		})
	})
}
