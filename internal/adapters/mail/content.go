package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
)

// ConfirmationBody is the text of the welcome email.
const ConfirmationBody = "You are subscribed for covid 19 updates!"

// Recipient names the person an update is addressed to.
type Recipient struct {
	FirstName string
	LastName  string
	Email     string
}

var updateTmpl = template.Must(template.New("update").Parse(`<html>
<head></head>
<body>
<p>Hello {{.First}} {{.Last}}! The below information is the most recent data for Covid 19 per your request. The data is yesterdays reported numbers.</p>
<table border="1" class="dataframe">
<thead>
<tr><th></th><th>county</th><th>state</th><th>cases</th><th>cases_avg_per_100k</th><th>potential_risk</th></tr>
</thead>
<tbody>{{range $i, $r := .Rows}}
<tr><th>{{$i}}</th><td>{{$r.County}}</td><td>{{$r.State}}</td><td>{{$r.Cases}}</td><td>{{$r.CasesAvgPer100k}}</td><td>{{$r.PotentialRisk}}</td></tr>{{end}}
</tbody>
</table>
</body>
</html>
`))

// Confirmation builds the welcome email sent after subscribing.
func Confirmation(to string, today time.Time) Message {
	subject := fmt.Sprintf("Subscription Successful, %s", today.Format(model.DateLayout))
	return NewMessage(KindConfirmation, to, subject, ConfirmationBody, false)
}

// Update builds the HTML email with the recipient's county rows.
func Update(kind Kind, r Recipient, rows []model.DerivedRecord, today time.Time) (Message, error) {
	var buf bytes.Buffer
	err := updateTmpl.Execute(&buf, struct {
		First, Last string
		Rows        []model.DerivedRecord
	}{r.FirstName, r.LastName, rows})
	if err != nil {
		return Message{}, fmt.Errorf("render update email: %w", err)
	}
	subject := fmt.Sprintf("Requested update for %s", today.Format(model.DateLayout))
	return NewMessage(kind, r.Email, subject, buf.String(), true), nil
}
