package bcb

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/ledger-engine/internal/config"
)

// selicMonthlySeries is the SGS series code for the monthly SELIC rate.
const selicMonthlySeries = 4390

// BCBClient fetches the reference monthly rate from Banco Central do Brasil.
// The rate seeds the loan pricing base rate; the configured default is kept
// whenever the feed is unreachable.
type BCBClient struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewBCBClient initializes a new BCB client
func NewBCBClient(cfg *config.Config, log *logrus.Logger) *BCBClient {
	return &BCBClient{
		url: cfg.BCBURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// buildSOAPRequest creates a SOAP request for the latest series value
func (c *BCBClient) buildSOAPRequest() string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
		<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">
			<soapenv:Body>
				<getUltimoValorXML xmlns="http://publico.ws.casosdeuso.sgs.pec.bcb.gov.br">
					<codigoSerie>%d</codigoSerie>
				</getUltimoValorXML>
			</soapenv:Body>
		</soapenv:Envelope>`, selicMonthlySeries)
}

// sendRequest sends SOAP request to BCB
func (c *BCBClient) sendRequest(soapRequest string) ([]byte, error) {
	req, err := http.NewRequest("POST", c.url, bytes.NewBufferString(soapRequest))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "getUltimoValorXML")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	c.log.Debugf("BCB XML response: %s", string(body))

	return body, nil
}

// parseXMLResponse extracts the latest rate from the series XML
func (c *BCBClient) parseXMLResponse(rawBody []byte) (float64, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return 0, fmt.Errorf("failed to parse XML: %v", err)
	}

	valueElement := doc.FindElement("//SERIE/VALOR")
	if valueElement == nil {
		return 0, fmt.Errorf("no series value found in XML")
	}

	var rate float64
	if _, err := fmt.Sscanf(valueElement.Text(), "%f", &rate); err != nil {
		return 0, fmt.Errorf("failed to parse rate: %v", err)
	}

	return rate, nil
}

// GetMonthlyRate retrieves the current monthly reference rate from BCB and
// adds the bank margin.
func (c *BCBClient) GetMonthlyRate() (float64, error) {
	soapRequest := c.buildSOAPRequest()
	body, err := c.sendRequest(soapRequest)
	if err != nil {
		return 0, err
	}

	rate, err := c.parseXMLResponse(body)
	if err != nil {
		return 0, err
	}

	// Bank margin over the reference rate
	const bankMargin = 1.5
	rate += bankMargin

	c.log.Infof("Retrieved monthly rate: %.2f%% (including %.2f%% bank margin)", rate, bankMargin)
	return rate, nil
}
