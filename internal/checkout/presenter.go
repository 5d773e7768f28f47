package checkout

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"vpos-gateway/internal/logger"
	"vpos-gateway/internal/order"

	"go.uber.org/zap"
)

// Presenter renders the shopper-facing payment pages. The payment form itself
// is Bancard's hosted iframe; these pages only bootstrap it and report the
// outcome.
type Presenter struct {
	svc    *Service
	orders order.Service
	pay    *template.Template
	result *template.Template
}

func NewPresenter(svc *Service, orders order.Service) *Presenter {
	return &Presenter{
		svc:    svc,
		orders: orders,
		pay:    template.Must(template.New("pay").Parse(payPageHTML)),
		result: template.Must(template.New("result").Parse(resultPageHTML)),
	}
}

// Show handles GET /pay/{id}: the page that mounts Bancard's checkout iframe.
func (p *Presenter) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := p.orderID(w, r)
	if !ok {
		return
	}

	data, err := p.svc.PaymentPage(r.Context(), id)
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := p.pay.Execute(w, data); err != nil {
		logger.FromCtx(r.Context()).Error("failed to render payment page", zap.Error(err))
	}
}

type resultData struct {
	Title    string
	Message  string
	RetryURL string
}

// Return handles GET /pay/{id}/return, where Bancard sends the shopper after
// the form closes. Payment state comes from the webhook, never from this
// redirect, so the page only reflects what the order already says.
func (p *Presenter) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := p.orderID(w, r)
	if !ok {
		return
	}

	ord, err := p.orders.Get(r.Context(), id)
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	data := resultData{
		Title:   "Pago en proceso",
		Message: "Tu pago está siendo procesado. Te notificaremos cuando se complete.",
	}
	if ord.Paid() {
		data.Title = "Pago completado"
		data.Message = "Tu pago fue procesado exitosamente. ¡Gracias por tu compra!"
	}
	p.renderResult(w, r, http.StatusOK, data)
}

// Cancel handles GET /pay/{id}/cancel.
func (p *Presenter) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := p.orderID(w, r)
	if !ok {
		return
	}

	if _, err := p.orders.Get(r.Context(), id); err != nil {
		p.renderError(w, r, err)
		return
	}

	p.renderResult(w, r, http.StatusOK, resultData{
		Title:    "Pago cancelado",
		Message:  "El pago fue cancelado. Puedes intentar nuevamente.",
		RetryURL: "/pay/" + strconv.FormatInt(id, 10),
	})
}

func (p *Presenter) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func (p *Presenter) renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		http.NotFound(w, r)
	case errors.Is(err, order.ErrAlreadyPaid):
		p.renderResult(w, r, http.StatusOK, resultData{
			Title:   "Pago completado",
			Message: "Tu pago fue procesado exitosamente. ¡Gracias por tu compra!",
		})
	case errors.Is(err, order.ErrNoSession):
		p.renderResult(w, r, http.StatusConflict, resultData{
			Title:   "Pago no iniciado",
			Message: "Esta orden no tiene un pago iniciado.",
		})
	default:
		logger.FromCtx(r.Context()).Error("failed to render checkout page", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (p *Presenter) renderResult(w http.ResponseWriter, r *http.Request, status int, data resultData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := p.result.Execute(w, data); err != nil {
		logger.FromCtx(r.Context()).Error("failed to render result page", zap.Error(err))
	}
}

const payPageHTML = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 560px; margin: 40px auto; padding: 0 16px; }
.amount { font-size: 1.2em; margin-bottom: 16px; }
#bancard-iframe-container { min-height: 300px; }
#bancard-error { display: none; color: #b00020; border: 1px solid #b00020; padding: 12px; border-radius: 4px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="amount">Orden #{{.OrderID}} — {{.Amount}} {{.Currency}}</p>
<div id="bancard-iframe-container"></div>
<div id="bancard-error">Error al cargar el formulario de pago de Bancard. Por favor recarga la página o intenta más tarde.</div>
<script>
(function () {
	var container = 'bancard-iframe-container';
	var processID = {{.ProcessID}};

	function showError() {
		document.getElementById('bancard-error').style.display = 'block';
	}

	var script = document.createElement('script');
	script.src = {{.ScriptURL}};
	script.onload = function () {
		if (window.Bancard && window.Bancard.Checkout) {
			window.Bancard.Checkout.createForm(container, processID);
		} else {
			showError();
		}
	};
	script.onerror = showError;
	document.head.appendChild(script);
})();
</script>
</body>
</html>
`

const resultPageHTML = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 560px; margin: 40px auto; padding: 0 16px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .RetryURL}}<p><a href="{{.RetryURL}}">Intentar nuevamente</a></p>{{end}}
</body>
</html>
`
