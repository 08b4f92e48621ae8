//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package cos

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

// Environment variables read for credentials.
const (
	SecretIDEnv  = "COS_SECRETID"
	SecretKeyEnv = "COS_SECRETKEY"
)

// Option configures the COS service.
type Option func(*options)

type options struct {
	client     client
	httpClient *http.Client

	timeout   time.Duration
	secretID  string
	secretKey string
	prefix    string
	publicURL string
}

// WithClient uses an existing COS client.
func WithClient(client *cos.Client) Option {
	return func(o *options) {
		o.client = newCosClient(client)
	}
}

// WithHTTPClient sets the HTTP client. Credentials are not added to it.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTimeout bounds each request.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithSecretID sets the secret ID, overriding COS_SECRETID.
func WithSecretID(secretID string) Option {
	return func(o *options) {
		o.secretID = secretID
	}
}

// WithSecretKey sets the secret key, overriding COS_SECRETKEY.
func WithSecretKey(secretKey string) Option {
	return func(o *options) {
		o.secretKey = secretKey
	}
}

// WithPrefix sets the object key prefix, e.g. "posts/images/".
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithPublicURL sets the base URL clients fetch objects from, e.g. a CDN
// domain. It defaults to the bucket URL.
func WithPublicURL(u string) Option {
	return func(o *options) {
		o.publicURL = u
	}
}

func buildClient(bucketURL string, o *options) (client, error) {
	if o.client != nil {
		return o.client, nil
	}
	u, err := url.Parse(bucketURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid bucket url %q", bucketURL)
	}
	b := &cos.BaseURL{BucketURL: u}

	var httpClient *http.Client
	if o.httpClient != nil {
		httpClient = o.httpClient
		if o.timeout > 0 {
			httpClient.Timeout = o.timeout
		}
	} else {
		httpClient = &http.Client{
			Timeout: o.timeout,
			Transport: &cos.AuthorizationTransport{
				SecretID:  o.secretID,
				SecretKey: o.secretKey,
			},
		}
	}
	return newCosClient(cos.NewClient(b, httpClient)), nil
}

func newOptions(opts []Option) *options {
	o := &options{
		timeout:   defaultTimeout,
		secretID:  os.Getenv(SecretIDEnv),
		secretKey: os.Getenv(SecretKeyEnv),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
