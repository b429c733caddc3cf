package scrape

import (
	"bytes"
	"net/http"
	"strings"
)

// Bot-defense block pages come back as ordinary 403/503 responses.
// Classifying them separates "the site refused us" from broken fetches.

type blockDetector func(status int, header http.Header, body []byte) (string, bool)

var blockDetectors = []blockDetector{
	detectCloudflare,
	detectAkamai,
	detectDataDome,
	detectPerimeterX,
}

// blockSource reports which bot-protection product, if any, produced the
// response.
func blockSource(status int, header http.Header, body []byte) (string, bool) {
	for _, d := range blockDetectors {
		if src, ok := d(status, header, body); ok {
			return src, true
		}
	}
	return "", false
}

func detectCloudflare(status int, header http.Header, body []byte) (string, bool) {
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable {
		return "", false
	}
	if strings.Contains(strings.ToLower(header.Get("Server")), "cloudflare") {
		return "Cloudflare", true
	}
	if bytes.Contains(body, []byte("cf-browser-verification")) ||
		bytes.Contains(body, []byte("cloudflare-nginx")) ||
		bytes.Contains(body, []byte("cf-turnstile")) ||
		bytes.Contains(body, []byte("Attention Required! | Cloudflare")) {
		return "Cloudflare", true
	}
	return "", false
}

func detectAkamai(status int, header http.Header, body []byte) (string, bool) {
	if status != http.StatusForbidden {
		return "", false
	}
	if strings.Contains(strings.ToLower(header.Get("Server")), "akamai") {
		return "Akamai", true
	}
	if bytes.Contains(body, []byte("Reference #")) && bytes.Contains(body, []byte("Access Denied")) {
		return "Akamai", true
	}
	return "", false
}

func detectDataDome(status int, header http.Header, body []byte) (string, bool) {
	if status != http.StatusForbidden {
		return "", false
	}
	if strings.Contains(strings.ToLower(header.Get("Server")), "datadome") {
		return "DataDome", true
	}
	if header.Get("X-DataDome") != "" || header.Get("X-DataDome-Response") != "" {
		return "DataDome", true
	}
	if bytes.Contains(body, []byte("geo.captcha-delivery.com")) || bytes.Contains(body, []byte("datadome")) {
		return "DataDome", true
	}
	return "", false
}

func detectPerimeterX(status int, header http.Header, body []byte) (string, bool) {
	if status != http.StatusForbidden {
		return "", false
	}
	if header.Get("X-Px-Captcha") != "" {
		return "PerimeterX", true
	}
	if bytes.Contains(body, []byte("client.perimeterx.net")) ||
		bytes.Contains(body, []byte("px-captcha")) ||
		bytes.Contains(body, []byte("_pxBlock")) {
		return "PerimeterX", true
	}
	return "", false
}
