// Package pipeline loads pipeline definitions and orders their stages.
//
// A pipeline file is YAML:
//
//	inbox:
//	  TOOLCHAIN:
//	    tag: stable
//	stages:
//	  build:
//	    node:
//	      containerfile: linux:ci/Containerfile
//	    inbox:
//	      SDK:
//	        tag: [release, linux]
//	    steps:
//	      - make all
//	    outbox:
//	      APP:
//	        - "out/** -> bin"
//	  deploy:
//	    inbox:
//	      APP:
//	        tag: latest
//	    steps:
//	      - ./deploy.sh
//	outbox:
//	  REPORT:
//	    - "reports/*.xml -> /"
//	clean:
//	  - "*.o"
//
// Stage and slot order follow the document. A stage whose inbox names a
// StorageID that another stage's outbox publishes depends on that stage;
// [BuildOrder] runs producers before consumers.
package pipeline
