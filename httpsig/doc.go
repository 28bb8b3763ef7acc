// Package httpsig implements HTTP Message Signatures per RFC 9421 with
// optional Content-Digest support per RFC 9530.
//
// The package is layered. The core builds the canonical signature base
// and dispatches signing and verification:
//
//   - Component: a component identifier such as "@method" or
//     `"@query-param";name="id"`.
//   - Provider: resolves component values from one request or response
//     snapshot. A ResponseProvider may reference the request it answers so
//     that `"@method";req` resolves against that request.
//   - Parameters: the ordered covered components plus signature metadata
//     (alg, created, expires, keyid, nonce, tag and extensions).
//   - CreateSignatureBase: the exact bytes that are signed.
//   - Sign and Verify: five algorithms plus derive-from-key mode, in which
//     the algorithm comes from a JWK "alg" member and is left off the wire.
//
// On top of the core sit SignRequest, SignResponse, VerifyRequest,
// VerifyResponse, a client Transport, a server Middleware and a YAML
// Profile.
//
// # Supported Algorithms
//
//   - rsa-pss-sha512 (RSASSA-PSS)
//   - rsa-v1_5-sha256 (RSASSA-PKCS1-v1_5)
//   - hmac-sha256 (HMAC)
//   - ecdsa-p256-sha256 (ECDSA P-256)
//   - ed25519 (Edwards-Curve DSA)
//
// # Building a Signature Base
//
//	params := httpsig.NewParameters().
//	    AddComponent(httpsig.ComponentAuthority).
//	    AddComponent("Content-Digest").
//	    AddComponentIdentifier(httpsig.NewComponent(httpsig.ComponentQueryParam).WithParam(httpsig.ParamName, "Pet")).
//	    SetCreated(time.Now()).
//	    SetKeyID("test-key")
//
//	provider, err := httpsig.RequestProviderFromHTTP(req)
//	if err != nil {
//	    return err
//	}
//
//	base, err := httpsig.CreateSignatureBase(params, provider)
//
// # Signing Requests
//
//	signer, err := httpsig.NewEd25519Signer("my-key-id", privateKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = httpsig.SignRequest(req, httpsig.SignConfig{
//	    Signer:            signer,
//	    Label:             "sig1",
//	    CoveredComponents: []string{httpsig.ComponentMethod, httpsig.ComponentAuthority, httpsig.ComponentPath},
//	})
//
// # Verifying Requests
//
//	resolver := func(r *http.Request, keyID string, alg httpsig.Algorithm) (httpsig.Verifier, error) {
//	    return verifier, nil
//	}
//
//	err := httpsig.VerifyRequest(req, httpsig.VerifyConfig{
//	    Resolver:           resolver,
//	    RequiredComponents: []string{httpsig.ComponentMethod, httpsig.ComponentAuthority},
//	    MaxAge:             5 * time.Minute,
//	})
//
// # Client Transport and Server Middleware
//
//	client := &http.Client{
//	    Transport: httpsig.NewTransport(nil, httpsig.TransportConfig{
//	        Sign: httpsig.SignConfig{Signer: signer},
//	    }),
//	}
//
//	mw, err := httpsig.Middleware(httpsig.MiddlewareConfig{
//	    Verify: httpsig.VerifyConfig{Resolver: resolver},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	handler = mw(handler)
//
// # Logging
//
// The core never logs. The message-level helpers emit debug records,
// including the signature base, through the *slog.Logger stored in the
// request context with github.com/veqryn/slog-context.
package httpsig
